package domain

import (
	"time"
)

// ClusterAnalysis is the read-only summary of one non-empty cluster.
// Invariants: FraudCount <= Size, UniqueUsers <= Size, and
// len(AvgFeatures) equals the feature dimension of the run.
type ClusterAnalysis struct {
	ClusterID         int       `json:"clusterId"`
	Size              int       `json:"size"`
	FraudCount        int       `json:"fraudCount"`
	UniqueUsers       int       `json:"uniqueUsers"`
	AvgFeatures       []float64 `json:"avgFeatures"`
	MostCommonType    string    `json:"mostCommonType"`
	MostCommonPayment string    `json:"mostCommonPayment"`

	// FraudRate is FraudCount / Size.
	FraudRate float64 `json:"fraudRate"`
}

// FraudRing is a connected component of the similarity graph that
// contains at least one fraudulent transaction. Density and
// AvgDegreeCentrality are both in [0,1] and exactly 0.0 for
// singleton components.
type FraudRing struct {
	ID                  int      `json:"id"`
	Members             []string `json:"members"` // transaction IDs
	Size                int      `json:"size"`
	Density             float64  `json:"density"`
	AvgDegreeCentrality float64  `json:"avgDegreeCentrality"`
	FraudCount          int      `json:"fraudCount"`
	UniqueUsers         int      `json:"uniqueUsers"`
}

// OffenderStats aggregates one user's dataset-wide transaction counts.
type OffenderStats struct {
	UserID     int64 `json:"userId"`
	FraudCount int   `json:"fraudCount"`
	TotalCount int   `json:"totalCount"`
}

// IsRepeatOffender reports whether the user has more than one
// fraudulent transaction in the dataset.
func (o OffenderStats) IsRepeatOffender() bool {
	return o.FraudCount > 1
}

// OverallMetrics aggregates statistics across the whole dataset.
type OverallMetrics struct {
	TotalTransactions int     `json:"totalTransactions"`
	TotalFraud        int     `json:"totalFraud"`
	FraudRate         float64 `json:"fraudRate"`
}

// ReportMetadata carries processing information for a run.
type ReportMetadata struct {
	FeatureDim    int    `json:"featureDim"`
	Iterations    int    `json:"iterations"`
	Converged     bool   `json:"converged"`
	VectorizeMs   int64  `json:"vectorizeMs"`
	ClusterMs     int64  `json:"clusterMs"`
	GraphMs       int64  `json:"graphMs"`
	TotalMs       int64  `json:"totalMs"`
	EngineVersion string `json:"engineVersion"`
}

// Report is the complete output of one analysis run: the clustering
// view, the ring view and the repeat-offender view over the same
// input snapshot. Plain data, consumed by the reporting layer.
type Report struct {
	Clusters  []ClusterAnalysis `json:"clusters"`
	Rings     []FraudRing       `json:"rings"`
	Offenders []OffenderStats   `json:"offenders"` // sorted by fraud count desc
	Metrics   OverallMetrics    `json:"metrics"`
	Metadata  ReportMetadata    `json:"metadata"`
}

// AnalysisRun is a persisted analysis: the run header plus its report.
type AnalysisRun struct {
	ID          string         `json:"id"`
	TenantID    string         `json:"tenantId"`
	Dataset     string         `json:"dataset"` // source path or label
	Fingerprint string         `json:"fingerprint"`
	CreatedAt   time.Time      `json:"createdAt"`
	Config      AnalysisConfig `json:"config"`
	Report      *Report        `json:"report"`
}

// RunSummary is the list view of a persisted run.
type RunSummary struct {
	ID                string    `json:"id"`
	Dataset           string    `json:"dataset"`
	CreatedAt         time.Time `json:"createdAt"`
	TotalTransactions int       `json:"totalTransactions"`
	TotalFraud        int       `json:"totalFraud"`
	FraudRate         float64   `json:"fraudRate"`
	ClusterCount      int       `json:"clusterCount"`
	RingCount         int       `json:"ringCount"`
}
