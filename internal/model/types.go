package model

const (
	StatusWaiting   = "waiting"
	StatusCompleted = "completed"
)

// PairingSession is the durable record behind one desktop↔mobile pairing.
// The token is immutable, status only ever moves waiting → completed, and
// the result fields are written once, together with the status flip.
type PairingSession struct {
	Token      string
	DocType    string
	Status     string
	ResultID   *int64
	ObjectKeys []string
	ImageURLs  []string
	CreatedAt  int64
}

// DocType describes one scannable document category: its backing table for
// the fallback poller and the desktop page where new rows show up.
type DocType struct {
	Name  string
	Label string
	Table string
	Page  string
}

var docTypes = []DocType{
	{Name: "resolutions", Label: "Resolution", Table: "resolutions", Page: "/resolutions"},
	{Name: "ordinances", Label: "Ordinance", Table: "ordinances", Page: "/ordinances"},
	{Name: "minutes", Label: "Minutes", Table: "minutes", Page: "/minutes"},
	{Name: "memos", Label: "Memo", Table: "memos", Page: "/memos"},
}

// DocTypes returns the allow-list of scannable document types.
func DocTypes() []DocType {
	out := make([]DocType, len(docTypes))
	copy(out, docTypes)
	return out
}

// DocTypeByName looks up a document type by its wire name.
func DocTypeByName(name string) (DocType, bool) {
	for _, dt := range docTypes {
		if dt.Name == name {
			return dt, true
		}
	}
	return DocType{}, false
}

// Upload is one freshly created document row, as surfaced by the fallback
// notifier's new_upload events.
type Upload struct {
	DocType    string
	Label      string
	ID         int64
	Title      string
	UploadedBy string
	Page       string
}
