package config

//go:generate go tool go-enum --marshal --names --nocase

// Specification of requested flattened output type.
// ENUM(text, html)
type OutputFmt int

func (o OutputFmt) Ext() string {
	switch o {
	case OutputFmtText:
		return ".txt"
	case OutputFmtHtml:
		return ".html"
	default:
		// this should never happen
		panic("unsupported format requested")
	}
}
