package export

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"github.com/r3d91ll/consensus/pkg/simulation"
)

// HashAlgorithm identifies the hashing algorithm used for fingerprints.
const HashAlgorithm = "SHA-256"

// Fingerprint identifies the parameters that make runs comparable:
// agent count, sample size, upper bound, model and initial distribution,
// plus the weights of a weighted distribution. Seed, instance count and
// update interval do not change the expected outcome and are left out.
func Fingerprint(cfg simulation.Config) string {
	params := map[string]string{
		"agent_count":          strconv.FormatUint(cfg.AgentCount, 10),
		"sample_size":          strconv.Itoa(int(cfg.SampleSize)),
		"upper_bound_k":        strconv.Itoa(int(cfg.UpperBoundK)),
		"model":                string(cfg.Model),
		"initial_distribution": string(cfg.InitialDistribution),
	}
	if cfg.InitialDistribution == simulation.DistributionWeighted {
		weights := make([]string, min(len(cfg.Weights), int(cfg.UpperBoundK)))
		for i := range weights {
			weights[i] = strconv.FormatFloat(cfg.Weights[i], 'g', -1, 64)
		}
		params["weights"] = strings.Join(weights, ",")
	}
	return hashParameters(params)
}

// ShortFingerprint returns the first 8 characters of a fingerprint, suitable
// for display.
func ShortFingerprint(fp string) string {
	if len(fp) >= 8 {
		return fp[:8]
	}
	return fp
}

// hashParameters hashes key=value pairs in key order.
func hashParameters(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(params[k])
		sb.WriteString("|")
	}

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}
