package shared

import (
	"time"
)

const (
	SignatureHeader   = "signature"
	ContentTypeHeader = "content-type"
	UserAgentHeader   = "user-agent"
	ContentTypeJSON   = "application/json"

	StatisticsPath         = "/statistics"
	ProofOfComputationPath = "/proof-of-computation"
)

// Report is the body a node posts to StatisticsPath.
// The signature header covers the exact bytes of the body.
type Report struct {
	CPUCount              uint16  `json:"cpu_count"`
	CPUIdle               float64 `json:"cpu_idle"`
	CPUInterrupt          float64 `json:"cpu_interrupt"`
	CPUNice               float64 `json:"cpu_nice"`
	CPUSystem             float64 `json:"cpu_system"`
	CPUUser               float64 `json:"cpu_user"`
	HostID                string  `json:"host_id"`
	MemFree               uint64  `json:"mem_free"`
	MemUsage              float64 `json:"mem_usage"`
	MemTotal              uint64  `json:"mem_total"`
	MT2Result             float64 `json:"mt_2_result"`
	MT4Result             float64 `json:"mt_4_result"`
	MT8Result             float64 `json:"mt_8_result"`
	PublicKey             string  `json:"public_key"`
	STResult              float64 `json:"st_result"`
	SysLoadAverageFifteen float64 `json:"sys_load_average_fifteen"`
	SysLoadAverageFive    float64 `json:"sys_load_average_five"`
	SysLoadAverageOne     float64 `json:"sys_load_average_one"`
	SysUptime             float64 `json:"sys_uptime"`
}

// Observation is one accepted reporting cycle, stamped by the server.
type Observation struct {
	BlockchainHash        string  `json:"blockchain_hash"`
	CPUCount              uint16  `json:"cpu_count"`
	CPUIdle               float64 `json:"cpu_idle"`
	CPUInterrupt          float64 `json:"cpu_interrupt"`
	CPUNice               float64 `json:"cpu_nice"`
	CPUSystem             float64 `json:"cpu_system"`
	CPUUsage              float64 `json:"cpu_usage"`
	CPUUser               float64 `json:"cpu_user"`
	ID                    string  `json:"id"`
	MemFree               uint64  `json:"mem_free"`
	MemUsage              float64 `json:"mem_usage"`
	MemTotal              uint64  `json:"mem_total"`
	MT2Result             float64 `json:"mt_2_result"`
	MT4Result             float64 `json:"mt_4_result"`
	MT8Result             float64 `json:"mt_8_result"`
	STResult              float64 `json:"st_result"`
	SysLoadAverageFifteen float64 `json:"sys_load_average_fifteen"`
	SysLoadAverageFive    float64 `json:"sys_load_average_five"`
	SysLoadAverageOne     float64 `json:"sys_load_average_one"`
	SysUptime             float64 `json:"sys_uptime"`
	Timestamp             uint64  `json:"timestamp"`
	ConsumedByProof       bool    `json:"used_for_proof"`
}

// NewObservation materializes an observation from a report.
// CPU usage is derived from the idle share.
func NewObservation(r Report, id string, now time.Time) Observation {
	return Observation{
		CPUCount:              r.CPUCount,
		CPUIdle:               r.CPUIdle,
		CPUInterrupt:          r.CPUInterrupt,
		CPUNice:               r.CPUNice,
		CPUSystem:             r.CPUSystem,
		CPUUsage:              100 - r.CPUIdle,
		CPUUser:               r.CPUUser,
		ID:                    id,
		MemFree:               r.MemFree,
		MemUsage:              r.MemUsage,
		MemTotal:              r.MemTotal,
		MT2Result:             r.MT2Result,
		MT4Result:             r.MT4Result,
		MT8Result:             r.MT8Result,
		STResult:              r.STResult,
		SysLoadAverageFifteen: r.SysLoadAverageFifteen,
		SysLoadAverageFive:    r.SysLoadAverageFive,
		SysLoadAverageOne:     r.SysLoadAverageOne,
		SysUptime:             r.SysUptime,
		Timestamp:             uint64(now.Unix()),
	}
}

// HostRecord holds everything known about one host.
// PublicKey is pinned on first contact, Observations only grow.
type HostRecord struct {
	PublicKey    string
	Observations []Observation
}

// Clone returns a deep copy of the record.
func (r *HostRecord) Clone() HostRecord {
	observations := make([]Observation, len(r.Observations))
	copy(observations, r.Observations)
	return HostRecord{PublicKey: r.PublicKey, Observations: observations}
}

type StatisticsResponse struct {
	Data      Observation `json:"data"`
	HostID    string      `json:"host_id"`
	PublicKey string      `json:"public_key"`
}

type ProofEntry struct {
	ID                        string  `json:"id"`
	PartialProofOfComputation float64 `json:"partial_proof_of_computation"`
}

type ProofResponse struct {
	Data               []ProofEntry `json:"data"`
	HostID             string       `json:"host_id"`
	ProofOfComputation float64      `json:"proof_of_computation"`
	PublicKey          string       `json:"public_key"`
}

// UserAgent formats the user-agent header value.
func UserAgent(version string) string {
	return "Auditor/" + version
}
