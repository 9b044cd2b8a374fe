package portrait

import (
	"fmt"
	"strconv"
	"strings"
)

type Options struct {
	Style       string // "" | "corporate" | "studio" | "outdoor" | "creative"
	AspectRatio string // optional override, e.g. "1:1", "4:5"
	Custom      string
}

type StylePreset struct {
	Name        string
	AspectRatio string
	Add         []string
}

const defaultAspect = "4:5"

var stylePresets = map[string]StylePreset{
	"": {
		Name:        "Corporate headshot",
		AspectRatio: defaultAspect,
		Add: []string{
			"Neutral light-grey seamless backdrop.",
			"Business attire consistent with the reference (dark blazer if the outfit is casual).",
			"Soft key light at 45 degrees, gentle fill, subtle rim light to separate hair from background.",
		},
	},
	"studio": {
		Name:        "Studio portrait",
		AspectRatio: defaultAspect,
		Add: []string{
			"Deep charcoal backdrop with a soft vignette of light behind the subject.",
			"Classic Rembrandt lighting, controlled contrast, editorial retouching.",
		},
	},
	"outdoor": {
		Name:        "Outdoor natural light",
		AspectRatio: "3:4",
		Add: []string{
			"Blurred urban or park background with creamy bokeh, shot at 85mm f/1.8.",
			"Golden-hour light, warm but natural skin tones.",
		},
	},
	"creative": {
		Name:        "Creative profile",
		AspectRatio: "1:1",
		Add: []string{
			"Solid colored backdrop in a muted tone that complements the outfit.",
			"Modern magazine-profile look, slightly playful framing, still professional.",
		},
	},
}

// ParseArgs reads "studio 1:1 smiling" style arguments on top of defaults.
// Unknown tokens become custom notes.
func ParseArgs(raw string, defaults Options) Options {
	opts := defaults
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return opts
	}

	var custom []string
	for _, tok := range strings.Fields(raw) {
		orig := tok
		tok = strings.ToLower(tok)

		if strings.HasPrefix(tok, "style=") {
			tok = strings.TrimPrefix(tok, "style=")
		}
		if _, ok := stylePresets[tok]; ok && tok != "" {
			opts.Style = tok
			continue
		}
		if tok == "corporate" || tok == "default" {
			opts.Style = ""
			continue
		}

		ar := strings.TrimPrefix(strings.TrimPrefix(tok, "aspect="), "ar=")
		if norm := normalizeAspectRatio(ar); norm != "" {
			opts.AspectRatio = norm
			continue
		}

		custom = append(custom, orig)
	}

	if len(custom) > 0 {
		opts.Custom = strings.Join(custom, " ")
	}
	return opts
}

// BuildPrompt returns the edit instruction and the aspect ratio to request.
func BuildPrompt(opts Options) (string, string) {
	style, ok := stylePresets[strings.ToLower(strings.TrimSpace(opts.Style))]
	if !ok {
		style = stylePresets[""]
	}

	aspect := normalizeAspectRatio(opts.AspectRatio)
	if aspect == "" {
		aspect = style.AspectRatio
	}

	var b strings.Builder
	b.Grow(2048)

	b.WriteString("TASK: Turn the attached photo into a professional portrait.\n\n")

	b.WriteString("IDENTITY LOCK:\n")
	for _, line := range []string{
		"The person in the output MUST be the same person as in the reference photo.",
		"Preserve face shape, skin tone, eye color, hairline, age and any distinctive features.",
		"Do not beautify to the point of changing identity; no face swaps.",
		"Keep glasses, facial hair and visible accessories unless they obstruct the face.",
	} {
		b.WriteString("- " + line + "\n")
	}
	b.WriteString("\n")

	b.WriteString("OUTPUT FORMAT:\n")
	b.WriteString("- Create 1 image.\n")
	b.WriteString(fmt.Sprintf("- Aspect ratio: %s, head-and-shoulders framing, eyes on the upper third.\n", aspect))
	b.WriteString("- Full-bleed: no borders, frames or empty edges.\n\n")

	writeSection(&b, "STYLE: "+style.Name, uniq(style.Add))
	writeSection(&b, "TECHNICAL", []string{
		"Tack-sharp eyes, natural skin texture, minimal retouching.",
		"Balanced exposure, no blown highlights.",
		"Medium-format camera look.",
	})

	if custom := strings.TrimSpace(opts.Custom); custom != "" {
		writeSection(&b, "ADDITIONAL NOTES", []string{custom})
	}

	writeSection(&b, "AVOID", []string{
		"different person", "distorted face", "extra fingers", "plastic skin",
		"text", "watermark", "logo", "low resolution", "cartoon look",
	})

	b.WriteString("OUTPUT RULES:\n")
	b.WriteString("- Image only. No text, no JSON.\n")

	return strings.TrimSpace(b.String()), aspect
}

func uniq(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func writeSection(b *strings.Builder, title string, lines []string) {
	if len(lines) == 0 {
		return
	}
	b.WriteString(title + ":\n")
	for _, line := range lines {
		b.WriteString("- " + line + "\n")
	}
	b.WriteString("\n")
}

func normalizeAspectRatio(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return ""
	}
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return ""
	}
	a, errA := strconv.Atoi(strings.TrimSpace(parts[0]))
	b, errB := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errA != nil || errB != nil || a <= 0 || b <= 0 {
		return ""
	}
	return fmt.Sprintf("%d:%d", a, b)
}
