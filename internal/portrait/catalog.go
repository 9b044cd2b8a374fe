package portrait

type NamedOption struct {
	Key  string
	Name string
}

func Styles() []NamedOption {
	order := []string{"", "studio", "outdoor", "creative"}

	out := make([]NamedOption, 0, len(order))
	for _, key := range order {
		if s, ok := stylePresets[key]; ok {
			out = append(out, NamedOption{Key: key, Name: s.Name})
		}
	}
	return out
}

func StyleName(key string) string {
	if s, ok := stylePresets[key]; ok {
		return s.Name
	}
	return stylePresets[""].Name
}
