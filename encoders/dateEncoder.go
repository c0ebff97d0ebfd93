package encoders

import (
	"fmt"
	"time"

	htm "github.com/htm-community/spatial-pooler"
	"github.com/htm-community/spatial-pooler/utils"
)

// DateEncoderParams selects which date subfields to encode and how wide
// each one's output block is. A zero Width leaves that subfield disabled.
type DateEncoderParams struct {
	SeasonWidth     int
	SeasonRadius    float64
	DayOfWeekWidth  int
	DayOfWeekRadius float64
	WeekendWidth    int
	WeekendRadius   float64
	HolidayWidth    int
	HolidayRadius   float64
	TimeOfDayWidth  int
	TimeOfDayRadius float64
	Name            string
}

// NewDateEncoderParams returns defaults matching the reference radii: a
// season lasts about 91.5 days, a day-of-week/weekend/holiday distinction
// spans 1 unit, and a time-of-day bucket spans 4 hours.
func NewDateEncoderParams() DateEncoderParams {
	return DateEncoderParams{
		SeasonRadius:    91.5,
		DayOfWeekRadius: 1,
		WeekendRadius:   1,
		HolidayRadius:   1,
		TimeOfDayRadius: 4,
	}
}

type dateSubfield struct {
	encoder *ScalarEncoder
	offset  int
}

// DateEncoder concatenates several ScalarEncoders, one per enabled
// subfield, into a single wide SDR.
type DateEncoder struct {
	params DateEncoderParams
	fields []dateSubfield
	width  int
}

// NewDateEncoder builds encoders for every subfield with a non-zero
// width in p and lays them out end to end.
func NewDateEncoder(p DateEncoderParams) (*DateEncoder, error) {
	de := &DateEncoder{params: p}

	add := func(w int, minVal, maxVal, radius float64, periodic bool, name string) error {
		if w == 0 {
			return nil
		}
		sub, err := NewScalarEncoder(ScalarEncoderParams{
			W: w, MinVal: minVal, MaxVal: maxVal, Radius: radius, Periodic: periodic, Name: name,
		})
		if err != nil {
			return err
		}
		de.fields = append(de.fields, dateSubfield{encoder: sub, offset: de.width})
		de.width += sub.Width()
		return nil
	}

	if err := add(p.SeasonWidth, 0, 366, p.SeasonRadius, true, "season"); err != nil {
		return nil, err
	}
	if err := add(p.DayOfWeekWidth, 0, 7, p.DayOfWeekRadius, true, "day of week"); err != nil {
		return nil, err
	}
	if err := add(p.WeekendWidth, 0, 1, p.WeekendRadius, false, "weekend"); err != nil {
		return nil, err
	}
	if err := add(p.HolidayWidth, 0, 1, p.HolidayRadius, false, "holiday"); err != nil {
		return nil, err
	}
	if err := add(p.TimeOfDayWidth, 0, 24, p.TimeOfDayRadius, true, "time of day"); err != nil {
		return nil, err
	}
	if de.width == 0 {
		return nil, fmt.Errorf("%w: DateEncoder: at least one subfield width must be non-zero", htm.ErrInvalidArgument)
	}
	return de, nil
}

// Width is the total number of bits across all enabled subfields.
func (de *DateEncoder) Width() int { return de.width }

// Name identifies this encoder.
func (de *DateEncoder) Name() string { return de.params.Name }

// fixedHolidays lists holidays that fall on the same month/day every
// year. December 25 is the only one the reference encoder knows about.
var fixedHolidays = []utils.TupleInt{{A: 12, B: 25}}

func (de *DateEncoder) subfieldValues(date time.Time) []float64 {
	timeOfDay := float64(date.Hour()) + float64(date.Minute())/60.0
	dayOfWeek := date.Weekday()

	var values []float64
	for _, f := range de.fields {
		switch f.encoder.Name() {
		case "season":
			values = append(values, float64(date.YearDay()-1))
		case "day of week":
			values = append(values, float64(dayOfWeek))
		case "weekend":
			weekend := 0.0
			if dayOfWeek == time.Saturday || dayOfWeek == time.Sunday ||
				(dayOfWeek == time.Friday && timeOfDay > 18) {
				weekend = 1.0
			}
			values = append(values, weekend)
		case "holiday":
			values = append(values, de.holidayValue(date))
		case "time of day":
			values = append(values, timeOfDay)
		}
	}
	return values
}

// holidayValue is 1 on the holiday itself and ramps smoothly to 0 across
// the day before and the day after.
func (de *DateEncoder) holidayValue(date time.Time) float64 {
	for _, h := range fixedHolidays {
		hDate := time.Date(date.Year(), time.Month(h.A), h.B, 0, 0, 0, 0, date.Location())
		diff := date.Sub(hDate)
		days := diff / (24 * time.Hour)
		switch {
		case days == 0 && diff >= 0:
			return 1
		case days == 1:
			return 1.0 - float64(diff-24*time.Hour)/float64(24*time.Hour)
		case days == 0 && diff < 0:
			return 1.0 - float64(-diff)/float64(24*time.Hour)
		}
	}
	return 0
}

// Encode maps date to a single SDR spanning every enabled subfield's
// block, offset end to end in the order the subfields were configured.
func (de *DateEncoder) Encode(date time.Time) (*htm.SDR, error) {
	values := de.subfieldValues(date)
	sdr, err := htm.NewSDR([]int{de.width})
	if err != nil {
		return nil, err
	}
	var indices []int
	for i, f := range de.fields {
		sub, err := f.encoder.Encode(values[i])
		if err != nil {
			return nil, err
		}
		fs, err := sub.GetFlatSparse()
		if err != nil {
			return nil, err
		}
		for _, idx := range fs {
			indices = append(indices, idx+f.offset)
		}
	}
	if err := sdr.SetFlatSparse(indices); err != nil {
		return nil, err
	}
	return sdr, nil
}
