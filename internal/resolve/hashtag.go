package resolve

import (
	"strings"

	"eventcal/internal/model"
)

const upperhex = "0123456789ABCDEF"

// componentReserved are the printable ASCII bytes percent-encoded in a URL
// component.
const componentReserved = " \"#<>?`{}/:;=@[\\]^|$&+,"

// EscapeHashtag percent-encodes tag for use as a URL path or query component.
func EscapeHashtag(tag string) string {
	var b strings.Builder
	for i := 0; i < len(tag); i++ {
		c := tag[i]
		if c < 0x20 || c >= 0x7f || strings.IndexByte(componentReserved, c) >= 0 {
			b.WriteByte('%')
			b.WriteByte(upperhex[c>>4])
			b.WriteByte(upperhex[c&15])
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func NewHashtag(tag string) *model.Hashtag {
	return &model.Hashtag{Display: tag, Escaped: EscapeHashtag(tag)}
}
