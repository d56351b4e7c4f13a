package wayback

// InventoryRow is one capture-index row describing an archived resource.
type InventoryRow struct {
	Timestamp string
	Original  string
	MimeType  string
	Length    int64
	URLKey    string
}

// DedupeKey is the identity under which inventory rows collapse. Two rows
// with the same original URL and canonical URL key describe the same
// resource.
func (r InventoryRow) DedupeKey() string {
	return r.Original + "|" + r.URLKey
}

// DownloadResult is a successfully retrieved archived payload.
type DownloadResult struct {
	Body      []byte
	Mime      string
	Timestamp string
}

// IsTimestamp reports whether a value is a well-formed 14-digit capture
// timestamp (YYYYMMDDhhmmss).
func IsTimestamp(value string) bool {
	if len(value) != 14 {
		return false
	}
	for _, c := range value {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
