// Package types contains common types used across the application.
package types

import (
	"encoding/json"
	"fmt"
)

// Category identifies an independent scoring dimension.
type Category int

// Known categories. The zero value is CategoryXP.
const (
	CategoryXP Category = iota
	CategoryQuests
	CategoryTrading
	CategoryDailyLogin

	categoryCount
)

var categoryNames = [...]string{
	CategoryXP:         "xp",
	CategoryQuests:     "quests",
	CategoryTrading:    "trading",
	CategoryDailyLogin: "daily_login",
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return c >= 0 && c < categoryCount
}

// Bit returns the activity bitmask bit for this category.
func (c Category) Bit() uint64 {
	return 1 << uint(c)
}

func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("category(%d)", int(c))
	}
	return categoryNames[c]
}

// MarshalJSON renders the category by name.
func (c Category) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON accepts a category name.
func (c *Category) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCategory, err)
	}
	parsed, err := ParseCategory(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCategory resolves a category name as used in the API and config.
func ParseCategory(s string) (Category, error) {
	for i, name := range categoryNames {
		if name == s {
			return Category(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidCategory, s)
}

// Categories returns all known categories in declaration order.
func Categories() []Category {
	out := make([]Category, categoryCount)
	for i := range out {
		out[i] = Category(i)
	}
	return out
}

// Timeframe scopes a leaderboard partition in time.
type Timeframe int

// Known timeframes. The zero value is TimeframeAllTime.
const (
	TimeframeAllTime Timeframe = iota
	TimeframeDaily
	TimeframeWeekly

	timeframeCount
)

var timeframeNames = [...]string{
	TimeframeAllTime: "all_time",
	TimeframeDaily:   "daily",
	TimeframeWeekly:  "weekly",
}

// Valid reports whether t is a known timeframe.
func (t Timeframe) Valid() bool {
	return t >= 0 && t < timeframeCount
}

func (t Timeframe) String() string {
	if !t.Valid() {
		return fmt.Sprintf("timeframe(%d)", int(t))
	}
	return timeframeNames[t]
}

// MarshalJSON renders the timeframe by name.
func (t Timeframe) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts a timeframe name.
func (t *Timeframe) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTimeframe, err)
	}
	parsed, err := ParseTimeframe(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseTimeframe resolves a timeframe name as used in the API and config.
func ParseTimeframe(s string) (Timeframe, error) {
	for i, name := range timeframeNames {
		if name == s {
			return Timeframe(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidTimeframe, s)
}

// Timeframes returns all known timeframes in declaration order.
func Timeframes() []Timeframe {
	out := make([]Timeframe, timeframeCount)
	for i := range out {
		out[i] = Timeframe(i)
	}
	return out
}

// Key identifies one leaderboard partition.
type Key struct {
	Category  Category  `json:"category"`
	Timeframe Timeframe `json:"timeframe"`
}

// Validate checks both components of the key.
func (k Key) Validate() error {
	if !k.Category.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidCategory, int(k.Category))
	}
	if !k.Timeframe.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidTimeframe, int(k.Timeframe))
	}
	return nil
}

func (k Key) String() string {
	return k.Category.String() + "/" + k.Timeframe.String()
}

// Entry represents one ranked leaderboard row.
type Entry struct {
	Rank   int    `json:"rank"`
	Entity string `json:"entity"`
	Score  uint64 `json:"score"`
}
