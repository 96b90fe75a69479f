package domain

import (
	"log/slog"
	"time"
)

// maxRecentCompletions bounds the recent-completions ring.
const maxRecentCompletions = 10

// Skill tracks one skill axis of the learning path.
type Skill struct {
	Current        float64  `json:"current_level"` // 0.0 - 1.0
	Target         float64  `json:"target_level"`  // 0.0 - 1.0
	CriticalPoints []string `json:"critical_points,omitempty"`
}

// ExerciseStatus is the lifecycle of a path exercise.
type ExerciseStatus string

const (
	ExerciseLocked     ExerciseStatus = "locked"
	ExerciseAvailable  ExerciseStatus = "available"
	ExerciseInProgress ExerciseStatus = "in_progress"
	ExerciseCompleted  ExerciseStatus = "completed"
)

// ExerciseBucket partitions exercises by priority.
type ExerciseBucket string

const (
	BucketCritical    ExerciseBucket = "critical"
	BucketRecommended ExerciseBucket = "recommended"
	BucketPractice    ExerciseBucket = "practice"
)

// PathExercise is one exercise unit of the learning path.
type PathExercise struct {
	ID            string         `json:"id"`
	Title         string         `json:"title,omitempty"`
	Skill         AssessmentType `json:"type"`
	Bucket        ExerciseBucket `json:"bucket"`
	Status        ExerciseStatus `json:"status"`
	Prerequisites []string       `json:"prerequisites,omitempty"`
}

// ChallengeStatus is the lifecycle of a challenge.
type ChallengeStatus string

const (
	ChallengeLocked    ChallengeStatus = "locked"
	ChallengeAvailable ChallengeStatus = "available"
	ChallengeCompleted ChallengeStatus = "completed"
)

// ChallengeBucket partitions challenges by recency.
type ChallengeBucket string

const (
	ChallengeCurrent  ChallengeBucket = "current"
	ChallengeUpcoming ChallengeBucket = "upcoming"
)

// Rewards are granted on challenge completion.
type Rewards struct {
	XP          int `json:"xp"`
	SkillPoints int `json:"skill_points"`
}

// Challenge is a multi-skill unit gated by minimum skill levels.
type Challenge struct {
	ID             string                     `json:"id"`
	Title          string                     `json:"title,omitempty"`
	Skills         []AssessmentType           `json:"skills"`
	Bucket         ChallengeBucket            `json:"bucket"`
	Status         ChallengeStatus            `json:"status"`
	MinSkillLevels map[AssessmentType]float64 `json:"min_skill_levels,omitempty"`
	Rewards        Rewards                    `json:"rewards"`
}

// NodeType distinguishes progression node kinds.
type NodeType string

const (
	NodeExercise  NodeType = "exercise"
	NodeChallenge NodeType = "challenge"
)

// UnlockCriteria is the conjunction of prerequisite completion and minimum
// skill levels required before a node becomes available.
type UnlockCriteria struct {
	RequiredNodes  []string                   `json:"required_nodes,omitempty"`
	RequiredSkills map[AssessmentType]float64 `json:"required_skills,omitempty"`
}

// Node is one unit in the progression graph.
type Node struct {
	Type      NodeType       `json:"type"`
	NextNodes []string       `json:"next_nodes,omitempty"`
	Completed bool           `json:"completed"`
	Unlock    UnlockCriteria `json:"unlock_criteria"`
}

// Progression is the dependency graph over exercises and challenges.
// AvailableNodeIDs is a cache of the unlock frontier, rebuilt on every
// mutation; completion and skill state are the source of truth.
type Progression struct {
	Nodes            map[string]*Node    `json:"nodes"`
	Dependencies     map[string][]string `json:"dependencies"`
	AvailableNodeIDs []string            `json:"available_node_ids"`
}

// RecentCompletion records one recently finished exercise.
type RecentCompletion struct {
	ExerciseID  string         `json:"exercise_id"`
	Skill       AssessmentType `json:"skill"`
	Accuracy    float64        `json:"accuracy"`
	CompletedAt time.Time      `json:"completed_at"`
}

// ExerciseTally tracks completion counts and the recent ring.
type ExerciseTally struct {
	Completed int                `json:"completed"`
	Total     int                `json:"total"`
	Recent    []RecentCompletion `json:"recent,omitempty"`
}

// Streak tracks consecutive-day activity.
type Streak struct {
	Current      int       `json:"current"`
	Best         int       `json:"best"`
	LastActivity time.Time `json:"last_activity"`
}

// Progress aggregates completion state. Overall is derived from the
// exercise tally and never set independently.
type Progress struct {
	Overall   float64                    `json:"overall"`
	BySkill   map[AssessmentType]float64 `json:"by_skill"`
	Exercises ExerciseTally              `json:"exercises"`
	Streak    Streak                     `json:"streak"`
}

// CompletionMetrics carries the completion signal from the exercising
// boundary.
type CompletionMetrics struct {
	Accuracy   float64       `json:"accuracy"`
	Duration   time.Duration `json:"duration"`
	AttemptNum int           `json:"attempt_num"`
}

// LearningPath is the materialized learning path for one user.
type LearningPath struct {
	UserID string `json:"user_id"`

	Skills      map[AssessmentType]Skill           `json:"skills"`
	Exercises   map[ExerciseBucket][]*PathExercise `json:"exercises"`
	Challenges  map[ChallengeBucket][]*Challenge   `json:"challenges"`
	Progression Progression                        `json:"progression"`
	Progress    Progress                           `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Exercise finds an exercise by ID across all buckets.
func (p *LearningPath) Exercise(id string) (*PathExercise, bool) {
	for _, bucket := range p.Exercises {
		for _, ex := range bucket {
			if ex.ID == id {
				return ex, true
			}
		}
	}
	return nil, false
}

// Challenge finds a challenge by ID across all buckets.
func (p *LearningPath) Challenge(id string) (*Challenge, bool) {
	for _, bucket := range p.Challenges {
		for _, ch := range bucket {
			if ch.ID == id {
				return ch, true
			}
		}
	}
	return nil, false
}

// Node returns the progression node for id.
func (p *LearningPath) Node(id string) (*Node, bool) {
	n, ok := p.Progression.Nodes[id]
	return n, ok
}

// IsAvailable recomputes availability for a node from completion and skill
// state. A node is available iff it exists, every required node is
// completed, and every required skill threshold is met.
func (p *LearningPath) IsAvailable(id string) bool {
	node, ok := p.Progression.Nodes[id]
	if !ok {
		return false
	}
	for _, req := range node.Unlock.RequiredNodes {
		dep, ok := p.Progression.Nodes[req]
		if !ok {
			slog.Warn("progression references missing node", "node", id, "required", req)
			continue
		}
		if !dep.Completed {
			return false
		}
	}
	for skill, min := range node.Unlock.RequiredSkills {
		if p.Skills[skill].Current < min {
			return false
		}
	}
	return true
}

// RebuildFrontier recomputes AvailableNodeIDs as the set of uncompleted
// nodes whose unlock criteria are satisfied. Full recomputation, O(nodes).
func (p *LearningPath) RebuildFrontier() {
	frontier := make([]string, 0, len(p.Progression.Nodes))
	for _, id := range p.OrderedNodeIDs() {
		node := p.Progression.Nodes[id]
		if node.Completed {
			continue
		}
		if p.IsAvailable(id) {
			frontier = append(frontier, id)
		}
	}
	p.Progression.AvailableNodeIDs = frontier
}

// UnlockNextNodes flips each candidate whose required nodes are all
// completed to available, then rebuilds the frontier cache. An empty
// candidate list still leaves the frontier consistent.
func (p *LearningPath) UnlockNextNodes(candidates []string) {
	for _, id := range candidates {
		node, ok := p.Progression.Nodes[id]
		if !ok {
			slog.Warn("unlock candidate missing from progression", "node", id)
			continue
		}
		if node.Completed || !p.IsAvailable(id) {
			continue
		}
		switch node.Type {
		case NodeExercise:
			if ex, ok := p.Exercise(id); ok && ex.Status == ExerciseLocked {
				ex.Status = ExerciseAvailable
			}
		case NodeChallenge:
			if ch, ok := p.Challenge(id); ok && ch.Status == ChallengeLocked {
				ch.Status = ChallengeAvailable
			}
		}
	}
	p.RebuildFrontier()
	p.UpdatedAt = time.Now()
}

// OrderedNodeIDs returns node IDs in a dependency-aware display order: a
// node sorts after any unmet prerequisite among the pending set; unrelated
// nodes keep encounter order. Display only, no effect on unlock state.
func (p *LearningPath) OrderedNodeIDs() []string {
	// Encounter order: exercises by bucket priority, then challenges.
	var order []string
	seen := make(map[string]bool)
	appendID := func(id string) {
		if _, ok := p.Progression.Nodes[id]; !ok {
			return
		}
		if !seen[id] {
			seen[id] = true
			order = append(order, id)
		}
	}
	for _, bucket := range []ExerciseBucket{BucketCritical, BucketRecommended, BucketPractice} {
		for _, ex := range p.Exercises[bucket] {
			appendID(ex.ID)
		}
	}
	for _, bucket := range []ChallengeBucket{ChallengeCurrent, ChallengeUpcoming} {
		for _, ch := range p.Challenges[bucket] {
			appendID(ch.ID)
		}
	}
	for id := range p.Progression.Nodes {
		appendID(id)
	}

	// Stable topological pass: repeatedly emit nodes whose pending
	// prerequisites have all been emitted or completed.
	emitted := make(map[string]bool, len(order))
	var sorted []string
	for len(sorted) < len(order) {
		progressed := false
		for _, id := range order {
			if emitted[id] {
				continue
			}
			node := p.Progression.Nodes[id]
			ready := true
			for _, req := range node.Unlock.RequiredNodes {
				dep, ok := p.Progression.Nodes[req]
				if !ok {
					slog.Warn("ordering skips missing prerequisite", "node", id, "required", req)
					continue
				}
				if !dep.Completed && !emitted[req] {
					ready = false
					break
				}
			}
			if ready {
				emitted[id] = true
				sorted = append(sorted, id)
				progressed = true
			}
		}
		if !progressed {
			// Dependency cycle in source data; emit the rest in
			// encounter order rather than looping.
			for _, id := range order {
				if !emitted[id] {
					emitted[id] = true
					sorted = append(sorted, id)
				}
			}
		}
	}
	return sorted
}

// CompleteExercise folds one completion event into the path: status,
// tallies, per-skill progress, streak, and the unlock frontier. Completing
// an already-completed exercise is a no-op.
func (p *LearningPath) CompleteExercise(id string, metrics CompletionMetrics) error {
	ex, ok := p.Exercise(id)
	if !ok {
		return ErrExerciseNotFound
	}
	if ex.Status == ExerciseCompleted {
		return nil
	}
	ex.Status = ExerciseCompleted

	node, ok := p.Progression.Nodes[id]
	if ok {
		node.Completed = true
	} else {
		slog.Warn("completed exercise missing from progression", "exercise", id)
	}

	p.Progress.Exercises.Completed++
	p.recordRecent(RecentCompletion{
		ExerciseID:  id,
		Skill:       ex.Skill,
		Accuracy:    metrics.Accuracy,
		CompletedAt: time.Now(),
	})
	p.recomputeOverall()
	p.bumpSkillProgress(ex.Skill)
	p.bumpStreak(time.Now())

	if node != nil {
		p.UnlockNextNodes(node.NextNodes)
	} else {
		p.RebuildFrontier()
	}
	p.UpdatedAt = time.Now()
	return nil
}

// recordRecent appends to the bounded recent-completions ring.
func (p *LearningPath) recordRecent(rc RecentCompletion) {
	recent := append(p.Progress.Exercises.Recent, rc)
	if len(recent) > maxRecentCompletions {
		recent = recent[len(recent)-maxRecentCompletions:]
	}
	p.Progress.Exercises.Recent = recent
}

// recomputeOverall derives the overall fraction from the exercise tally.
func (p *LearningPath) recomputeOverall() {
	if p.Progress.Exercises.Total == 0 {
		p.Progress.Overall = 0
		return
	}
	p.Progress.Overall = float64(p.Progress.Exercises.Completed) / float64(p.Progress.Exercises.Total)
}

// bumpSkillProgress adds 1/count(critical exercises of the skill) to the
// skill's progress fraction, clamped to [0, 1].
func (p *LearningPath) bumpSkillProgress(skill AssessmentType) {
	critical := 0
	for _, ex := range p.Exercises[BucketCritical] {
		if ex.Skill == skill {
			critical++
		}
	}
	if critical == 0 {
		return
	}
	if p.Progress.BySkill == nil {
		p.Progress.BySkill = make(map[AssessmentType]float64)
	}
	v := p.Progress.BySkill[skill] + 1/float64(critical)
	if v > 1 {
		v = 1
	}
	p.Progress.BySkill[skill] = v
}

// bumpStreak extends the streak for a new activity day, resets it after a
// gap, and keeps the best streak seen.
func (p *LearningPath) bumpStreak(now time.Time) {
	st := &p.Progress.Streak
	last := st.LastActivity
	switch {
	case last.IsZero():
		st.Current = 1
	case sameDay(last, now):
		// Second completion today; streak unchanged.
	case sameDay(last.AddDate(0, 0, 1), now):
		st.Current++
	default:
		st.Current = 1
	}
	if st.Current > st.Best {
		st.Best = st.Current
	}
	st.LastActivity = now
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
