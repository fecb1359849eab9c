package score

import (
	"math"
	"net/url"
	"sort"
	"strings"

	"storyreel-pipeline/config"
	"storyreel-pipeline/types"
)

// Scorer ranks media candidates against a target frame and duration.
// Rank is pure: no I/O, no state, deterministic for a given input order.
type Scorer struct {
	cfg config.ScoringConfig
}

// New creates a Scorer from the configured policy
func New(cfg config.ScoringConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Rank filters and scores candidates, returning them sorted best-first.
// Video candidates shorter than target×minRatio are excluded before scoring:
// a clip that cannot fill the narration must not be selectable at all.
// Denylisted domains are excluded the same way. Ties are broken by the
// smaller |duration − target| so equal scores order deterministically.
func (s *Scorer) Rank(candidates []types.MediaCandidate, frameW, frameH int, targetDurationSec *float64) []types.ScoredCandidate {
	var scored []types.ScoredCandidate
	for _, cand := range candidates {
		if s.excluded(cand, targetDurationSec) {
			continue
		}
		scored = append(scored, types.ScoredCandidate{
			MediaCandidate: cand,
			Score:          s.score(cand, frameW, frameH, targetDurationSec),
		})
	}

	target := 0.0
	if targetDurationSec != nil {
		target = *targetDurationSec
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return durationDistance(scored[i].MediaCandidate, target) < durationDistance(scored[j].MediaCandidate, target)
	})
	return scored
}

func (s *Scorer) excluded(cand types.MediaCandidate, targetDurationSec *float64) bool {
	host := hostOf(cand.URL)
	if host == "" {
		return true
	}
	for _, d := range s.cfg.DeniedDomains {
		if strings.HasSuffix(host, d) {
			return true
		}
	}
	// Hard exclusion: too short to fill the narration
	if cand.IsVideo && targetDurationSec != nil && cand.ReportedDurationSec != nil {
		if *cand.ReportedDurationSec < *targetDurationSec*s.cfg.MinDurationRatio {
			return true
		}
	}
	return false
}

func (s *Scorer) score(cand types.MediaCandidate, frameW, frameH int, targetDurationSec *float64) float64 {
	total := s.cfg.BaseScore
	total += s.resolutionBonus(cand, frameW, frameH)
	total += s.aspectBonus(cand, frameW, frameH)
	if cand.IsVideo && targetDurationSec != nil {
		total += s.durationBonus(cand, *targetDurationSec)
	}
	if s.trusted(cand.URL) {
		total += s.cfg.TrustedBonus
	}
	return clamp01(total)
}

// resolutionBonus grants the full bonus at or above the large-area
// threshold relative to the target frame, with partial credit scaled by
// area ratio below it. Unreported dimensions earn nothing.
func (s *Scorer) resolutionBonus(cand types.MediaCandidate, frameW, frameH int) float64 {
	if cand.ReportedWidth == nil || cand.ReportedHeight == nil {
		return 0
	}
	area := float64(*cand.ReportedWidth * *cand.ReportedHeight)
	frameArea := float64(frameW * frameH)
	if frameArea <= 0 {
		return 0
	}
	ratio := area / frameArea
	if ratio >= s.cfg.LargeAreaRatio {
		return s.cfg.ResolutionBonus
	}
	return s.cfg.ResolutionBonus * (ratio / s.cfg.LargeAreaRatio)
}

// aspectBonus decays linearly as the candidate ratio diverges from target
func (s *Scorer) aspectBonus(cand types.MediaCandidate, frameW, frameH int) float64 {
	if cand.ReportedWidth == nil || cand.ReportedHeight == nil || *cand.ReportedHeight == 0 || frameH == 0 {
		return 0
	}
	candRatio := float64(*cand.ReportedWidth) / float64(*cand.ReportedHeight)
	targetRatio := float64(frameW) / float64(frameH)
	dev := math.Abs(candRatio-targetRatio) / targetRatio
	if dev >= s.cfg.MaxAspectDeviation {
		return 0
	}
	return s.cfg.AspectBonus * (1 - dev/s.cfg.MaxAspectDeviation)
}

// durationBonus implements the three-band policy: full bonus inside
// [target, target+margin], linearly scaled credit in
// [target×minRatio, target), nothing outside either band.
func (s *Scorer) durationBonus(cand types.MediaCandidate, target float64) float64 {
	if cand.ReportedDurationSec == nil || target <= 0 {
		return 0
	}
	dur := *cand.ReportedDurationSec
	switch {
	case dur >= target && dur <= target+s.cfg.IdealMarginSec:
		return s.cfg.DurationBonus
	case dur >= target*s.cfg.MinDurationRatio && dur < target:
		floor := target * s.cfg.MinDurationRatio
		span := target - floor
		if span <= 0 {
			return 0
		}
		return s.cfg.DurationBonus * ((dur - floor) / span)
	default:
		return 0
	}
}

func (s *Scorer) trusted(rawURL string) bool {
	host := hostOf(rawURL)
	for _, d := range s.cfg.TrustedDomains {
		if strings.HasSuffix(host, d) {
			return true
		}
	}
	return false
}

// durationDistance is the tie-break key; candidates without a reported
// duration sort after any candidate that has one
func durationDistance(cand types.MediaCandidate, target float64) float64 {
	if cand.ReportedDurationSec == nil {
		return math.MaxFloat64
	}
	return math.Abs(*cand.ReportedDurationSec - target)
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Host)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
