package service

import (
	"math/rand"
	"sort"
	"time"

	"github.com/noah-isme/langcenter-api/internal/models"
)

// SelectionStrategy decides which waiting candidates take part in a run and in which order
// they are evaluated.
type SelectionStrategy interface {
	Name() string
	// Eligible is the strategy specific candidate predicate.
	Eligible(att *models.Attendance) bool
	// Prepare may reorder the candidate list in place before the first Select.
	Prepare(candidates []*models.Attendance)
	// Select returns the index of the next candidate to evaluate.
	Select(candidates []*models.Attendance) int
}

// FilterCandidates keeps attendances accepted by eligible whose language is not in manual mode at now.
// Input order is preserved.
func FilterCandidates(waiting []*models.Attendance, now time.Time, eligible func(*models.Attendance) bool) []*models.Attendance {
	candidates := make([]*models.Attendance, 0, len(waiting))
	for _, att := range waiting {
		if att.Course == nil || att.Course.Language == nil {
			continue
		}
		if !eligible(att) {
			continue
		}
		if att.Course.Language.IsInManualMode(now) {
			continue
		}
		candidates = append(candidates, att)
	}
	return candidates
}

// RandomStrategy implements the lottery held for registrations inside the random window.
type RandomStrategy struct {
	rng *rand.Rand
}

// NewRandomStrategy builds the lottery strategy. A nil rng is seeded from the clock.
func NewRandomStrategy(rng *rand.Rand) *RandomStrategy {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &RandomStrategy{rng: rng}
}

// Name implements SelectionStrategy.
func (s *RandomStrategy) Name() string { return "random" }

// Eligible accepts registrations made in [signup_begin, signup_rnd_window_end).
// Earlier registrations are preterm and never enter the lottery.
func (s *RandomStrategy) Eligible(att *models.Attendance) bool {
	if att.Course == nil || att.Course.Language == nil {
		return false
	}
	return att.Course.Language.IsOpenForSignupRnd(att.Registered)
}

// Prepare orders applicants with fewer active courses first. Select draws over the whole
// list regardless of this order.
func (s *RandomStrategy) Prepare(candidates []*models.Attendance) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return activeCount(candidates[i]) < activeCount(candidates[j])
	})
}

// Select draws uniformly over the remaining candidates.
func (s *RandomStrategy) Select(candidates []*models.Attendance) int {
	if len(candidates) == 0 {
		return -1
	}
	return s.rng.Intn(len(candidates))
}

// FCFSStrategy serves waiting registrations strictly by registration time.
type FCFSStrategy struct{}

// Name implements SelectionStrategy.
func (FCFSStrategy) Name() string { return "fcfs" }

// Eligible accepts every waiting registration.
func (FCFSStrategy) Eligible(*models.Attendance) bool { return true }

// Prepare keeps the registration order of the loaded graph.
func (FCFSStrategy) Prepare([]*models.Attendance) {}

// Select always takes the oldest remaining registration.
func (FCFSStrategy) Select(candidates []*models.Attendance) int {
	if len(candidates) == 0 {
		return -1
	}
	return 0
}

func activeCount(att *models.Attendance) int {
	if att.Applicant == nil {
		return 0
	}
	return att.Applicant.ActiveCourseCount()
}
