package model

// BackingIndexPrefix is the naming prefix shared by all data stream backing
// indices. Renames strip and reapply it so the convention survives.
const BackingIndexPrefix = ".ds-"

// DataStream is a named, time-partitioned sequence of backing indices
// addressed as one logical target.
type DataStream struct {
	Name           string   `json:"name"`
	TimestampField string   `json:"timestamp_field"`
	Indices        []string `json:"indices"`
	Generation     int64    `json:"generation"`
	Hidden         bool     `json:"hidden,omitempty"`
	Replicated     bool     `json:"replicated,omitempty"`
}

// Clone returns a deep copy of the data stream
func (d DataStream) Clone() DataStream {
	out := d
	out.Indices = append([]string(nil), d.Indices...)
	return out
}
