package content

// FilterConfig is the per-format state of one text filter.
type FilterConfig struct {
	ID     string
	Status bool
	Weight int
}

// FormatConfig is a named text format and the filters configured on it.
type FormatConfig struct {
	Name    string
	Filters map[string]FilterConfig
}

// Filter returns the named filter and whether the format carries it.
func (f *FormatConfig) Filter(id string) (FilterConfig, bool) {
	if f == nil || f.Filters == nil {
		return FilterConfig{}, false
	}
	fc, ok := f.Filters[id]
	return fc, ok
}

// FilterEnabled reports whether the format has the filter and it is switched on.
func (f *FormatConfig) FilterEnabled(id string) bool {
	fc, ok := f.Filter(id)
	return ok && fc.Status
}
