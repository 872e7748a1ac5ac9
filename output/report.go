package output

import (
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"knockraven/port"
)

// MatchRecord is one discovered sequence in a JSON report.
type MatchRecord struct {
	Sequence  []uint16 `json:"sequence"`
	Protocols []string `json:"protocols"`
	Label     string   `json:"label"`
	Service   string   `json:"service,omitempty"`
	Banner    string   `json:"banner,omitempty"`
}

// Report is the machine-readable summary of one scan.
type Report struct {
	ScanID      string        `json:"scan_id"`
	Target      string        `json:"target"`
	IP          string        `json:"ip"`
	Mode        string        `json:"mode"`
	Length      int           `json:"length"`
	Ports       []uint16      `json:"ports"`
	Monitor     uint16        `json:"monitor"`
	Total       uint64        `json:"total"` // 0 when the count overflows
	Completed   uint64        `json:"completed"`
	Interrupted bool          `json:"interrupted,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	DurationMS  int64         `json:"duration_ms"`
	Matches     []MatchRecord `json:"matches"`
}

// NewReport starts a report with a fresh scan ID.
func NewReport(target, ip string, mode port.Mode, length int, ports []uint16, monitor uint16) *Report {
	return &Report{
		ScanID:    uuid.NewString(),
		Target:    target,
		IP:        ip,
		Mode:      string(mode),
		Length:    length,
		Ports:     ports,
		Monitor:   monitor,
		StartedAt: time.Now().UTC(),
		Matches:   []MatchRecord{},
	}
}

// Finish records the scan result and its duration.
func (r *Report) Finish(matches []port.Match, done, total uint64, interrupted bool) {
	r.Completed = done
	r.Total = total
	r.Interrupted = interrupted
	r.DurationMS = time.Since(r.StartedAt).Milliseconds()
	r.Matches = make([]MatchRecord, 0, len(matches))
	for _, m := range matches {
		protos := make([]string, len(m.Assignment))
		for i, p := range m.Assignment {
			protos[i] = string(p)
		}
		label := m.String()
		if r.Mode == string(port.ModeMixed) {
			label = m.Labeled()
		}
		r.Matches = append(r.Matches, MatchRecord{
			Sequence:  m.Sequence,
			Protocols: protos,
			Label:     label,
			Service:   m.Service,
			Banner:    m.Banner,
		})
	}
}

// JSON encodes the report.
func (r *Report) JSON() ([]byte, error) {
	return sonic.ConfigStd.MarshalIndent(r, "", "  ")
}

// DecodeReport parses a report produced by JSON.
func DecodeReport(data []byte) (*Report, error) {
	var r Report
	if err := sonic.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
