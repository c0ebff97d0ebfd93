// Package utils holds small slice and arithmetic helpers shared by the
// encoders package.
package utils

// TupleInt is a pair of integers, used by the date encoder's fixed
// holiday list (month, day).
type TupleInt struct {
	A int
	B int
}

// FillSliceWithIdxInt sets values[i] = i for every index.
func FillSliceWithIdxInt(values []int) {
	for i := range values {
		values[i] = i
	}
}

// CartProductInt returns the cartesian product of values, one chosen
// element per row.
func CartProductInt(values [][]int) [][]int {
	pos := make([]int, len(values))
	var result [][]int

	for pos[0] < len(values[0]) {
		temp := make([]int, len(values))
		for j := 0; j < len(values); j++ {
			temp[j] = values[j][pos[j]]
		}
		result = append(result, temp)
		pos[len(values)-1]++
		for k := len(values) - 1; k >= 1; k-- {
			if pos[k] >= len(values[k]) {
				pos[k] = 0
				pos[k-1]++
			} else {
				break
			}
		}
	}
	return result
}

// ProdInt returns the product of vals, or 0 when that product is 1 (an
// empty or all-ones slice).
func ProdInt(vals []int) int {
	prod := 1
	for _, v := range vals {
		prod *= v
	}
	if prod == 1 {
		return 0
	}
	return prod
}
