package pipeline

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/flowlevel/flowlevel/pipeline/autoenc"
	"github.com/flowlevel/flowlevel/pipeline/cluster"
)

// Flow-level category labels, assigned to clusters by rank.
const (
	CategoryLow    = "Low Flow Level"
	CategoryMedium = "Medium Flow Level"
	CategoryHigh   = "High Flow Level"
)

// rankToName maps a cluster's rank (by mean raw traffic, descending) to
// its category label. Note the inversion: rank 0 is the cluster with the
// HIGHEST average raw traffic, yet it receives the "Low" name. The
// report has carried this mapping since its first version and downstream
// consumers key on the literal strings, so it is preserved as-is.
var rankToName = map[int]string{
	0: CategoryLow,
	1: CategoryMedium,
	2: CategoryHigh,
}

// ReportRow is one segment's terminal record.
type ReportRow struct {
	Segment       string
	ClusterID     int
	Category      string
	AvgRawTraffic float64
}

// Report is the pipeline's terminal artifact: one row per segment, in
// input order. It is only ever constructed whole; a failed run produces
// no report at all.
type Report struct {
	Rows        []ReportRow
	BestValLoss float64
}

// GenerateReport encodes every segment to a latent vector, clusters the
// latents into three groups, ranks the groups by mean raw traffic and
// labels each segment accordingly.
func GenerateReport(ds *Dataset, enc *autoenc.Encoder, rng *PartitionedRNG) (*Report, error) {
	latents := make([][]float64, len(ds.Scaled))
	for i, series := range ds.Scaled {
		z, err := enc.Encode(series)
		if err != nil {
			return nil, fmt.Errorf("encode segment %s: %w", ds.Segments[i], err)
		}
		latents[i] = z
	}

	res, err := cluster.KMeans(latents, cluster.DefaultOptions(), rng.ForSubsystem(SubsystemCluster))
	if err != nil {
		return nil, fmt.Errorf("cluster latents: %w", err)
	}

	categories := rankClusters(res.Labels, cluster.DefaultOptions().K, ds.RawMeans)

	rows := make([]ReportRow, len(ds.Segments))
	for i, seg := range ds.Segments {
		rows[i] = ReportRow{
			Segment:       seg,
			ClusterID:     res.Labels[i],
			Category:      categories[res.Labels[i]],
			AvgRawTraffic: ds.RawMeans[i],
		}
	}
	return &Report{Rows: rows}, nil
}

// rankClusters computes each cluster's mean raw traffic, sorts the
// clusters by that mean descending (empty clusters sink to the bottom
// with a -Inf mean; ties keep cluster-id order), and assigns category
// names by rank position.
func rankClusters(labels []int, k int, rawMeans []float64) map[int]string {
	sums := make([]float64, k)
	counts := make([]int, k)
	for i, c := range labels {
		sums[c] += rawMeans[i]
		counts[c]++
	}

	avgs := make([]float64, k)
	for c := 0; c < k; c++ {
		if counts[c] == 0 {
			avgs[c] = math.Inf(-1)
			continue
		}
		avgs[c] = sums[c] / float64(counts[c])
	}

	order := make([]int, k)
	for c := range order {
		order[c] = c
	}
	sort.SliceStable(order, func(i, j int) bool {
		return avgs[order[i]] > avgs[order[j]]
	})

	categories := make(map[int]string, k)
	for rank, c := range order {
		categories[c] = rankToName[rank]
	}
	return categories
}

// WriteCSV writes the report with the header
// segment,cluster_id,category,avg_raw_traffic.
func (r *Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"segment", "cluster_id", "category", "avg_raw_traffic"}); err != nil {
		return err
	}
	for _, row := range r.Rows {
		record := []string{
			row.Segment,
			strconv.Itoa(row.ClusterID),
			row.Category,
			strconv.FormatFloat(row.AvgRawTraffic, 'g', -1, 64),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveCSV writes the report to path, creating parent directories. The
// file is rendered to a buffer first and written in one shot, so a
// failure cannot leave a truncated report on disk.
func (r *Report) SaveCSV(path string) error {
	var buf bytes.Buffer
	if err := r.WriteCSV(&buf); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
