package upload

import (
	"strconv"
	"strings"
)

// AcceptedTypes is the allow-list offered to file pickers. It only filters
// the OS dialog; Accept checks the broader image category.
const AcceptedTypes = "image/png,image/jpeg,image/webp"

// Candidate is an unvalidated file taken from an input channel.
type Candidate struct {
	Name      string
	MediaType string
	Payload   []byte

	// Fingerprint identifies the selection for change detection
	// (e.g. name+lastModified from a browser, file_unique_id from Telegram).
	Fingerprint string
}

func (c Candidate) selectionKey() string {
	if fp := strings.TrimSpace(c.Fingerprint); fp != "" {
		return fp
	}
	return c.Name + ":" + strconv.Itoa(len(c.Payload))
}

func IsImage(mediaType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mediaType)), "image/")
}

func firstFile(files []Candidate) *Candidate {
	if len(files) == 0 {
		return nil
	}
	f := files[0]
	return &f
}
