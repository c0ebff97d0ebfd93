package htm

// NewProxy builds a read-only reshaped view over parent. dims defaults to
// parent's own dimensions when omitted; otherwise Π dims must equal
// parent.Size(). A Proxy may itself be the parent of another Proxy,
// forming a tree; destroying any node invalidates its whole subtree
// (spec.md §4.3).
func NewProxy(parent *SDR, dims ...[]int) (*SDR, error) {
	if err := parent.checkAlive("NewProxy"); err != nil {
		return nil, err
	}

	var dimensions []int
	if len(dims) == 0 || dims[0] == nil {
		dimensions = parent.Dimensions()
	} else {
		dimensions = dims[0]
	}

	topo, err := NewTopology(dimensions)
	if err != nil {
		return nil, err
	}
	if topo.Size() != parent.Size() {
		return nil, invalidArgErr("NewProxy", "proxy size must equal parent size")
	}

	proxy := &SDR{
		dimensions: topo.Dimensions(),
		topology:   topo,
		size:       topo.Size(),
		parent:     parent,
	}

	// Propagate parent mutations as this proxy's own notification round:
	// proxies attached to the proxy (and metrics on it) are notified, in
	// their registration order, when the parent's round reaches this
	// callback, i.e. after parent observers registered before the proxy
	// and before those registered after it.
	handle := parent.AddCallback(func() {
		proxy.denseValid = false
		proxy.flatSparseValid = false
		proxy.sparseValid = false
		proxy.notify()
	})
	parent.addDestroyHook(func() {
		proxy.detachSelf()
	})
	proxy.addDestroyHook(func() {
		_ = parent.RemoveCallback(handle)
	})

	return proxy, nil
}
