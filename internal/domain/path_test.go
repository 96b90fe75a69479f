package domain

import (
	"errors"
	"testing"
	"time"
)

// twoNodePath builds a minimal path with exercise A (no prerequisites,
// available) and exercise B requiring A.
func twoNodePath() *LearningPath {
	return &LearningPath{
		UserID: "u1",
		Skills: map[AssessmentType]Skill{
			AssessmentPronunciation: {Current: 0.4, Target: 0.7},
		},
		Exercises: map[ExerciseBucket][]*PathExercise{
			BucketCritical: {
				{ID: "A", Skill: AssessmentPronunciation, Bucket: BucketCritical, Status: ExerciseAvailable},
				{ID: "B", Skill: AssessmentPronunciation, Bucket: BucketCritical, Status: ExerciseLocked, Prerequisites: []string{"A"}},
			},
		},
		Challenges: map[ChallengeBucket][]*Challenge{},
		Progression: Progression{
			Nodes: map[string]*Node{
				"A": {Type: NodeExercise, NextNodes: []string{"B"}},
				"B": {Type: NodeExercise, Unlock: UnlockCriteria{RequiredNodes: []string{"A"}}},
			},
			Dependencies:     map[string][]string{"B": {"A"}},
			AvailableNodeIDs: []string{"A"},
		},
		Progress: Progress{
			BySkill:   map[AssessmentType]float64{},
			Exercises: ExerciseTally{Total: 2},
		},
	}
}

func TestLearningPath_IsAvailable_RequiresCompletion(t *testing.T) {
	p := twoNodePath()

	if !p.IsAvailable("A") {
		t.Error("IsAvailable(A) = false; A has no prerequisites")
	}
	if p.IsAvailable("B") {
		t.Error("IsAvailable(B) = true before A completed")
	}

	p.Progression.Nodes["A"].Completed = true
	if !p.IsAvailable("B") {
		t.Error("IsAvailable(B) = false after A completed")
	}
}

func TestLearningPath_IsAvailable_SkillThreshold(t *testing.T) {
	p := twoNodePath()
	p.Progression.Nodes["A"].Completed = true
	p.Progression.Nodes["B"].Unlock.RequiredSkills = map[AssessmentType]float64{
		AssessmentPronunciation: 0.6,
	}

	if p.IsAvailable("B") {
		t.Error("IsAvailable(B) = true below skill threshold")
	}

	p.Skills[AssessmentPronunciation] = Skill{Current: 0.6}
	if !p.IsAvailable("B") {
		t.Error("IsAvailable(B) = false at skill threshold")
	}
}

func TestLearningPath_IsAvailable_MissingNode(t *testing.T) {
	p := twoNodePath()
	if p.IsAvailable("nope") {
		t.Error("IsAvailable(missing) = true")
	}
}

func TestLearningPath_UnlockNextNodes(t *testing.T) {
	p := twoNodePath()
	p.Progression.Nodes["A"].Completed = true

	p.UnlockNextNodes([]string{"B"})

	ex, _ := p.Exercise("B")
	if ex.Status != ExerciseAvailable {
		t.Errorf("B status = %s; want %s", ex.Status, ExerciseAvailable)
	}
	if !containsID(p.Progression.AvailableNodeIDs, "B") {
		t.Errorf("AvailableNodeIDs = %v; want B included", p.Progression.AvailableNodeIDs)
	}
}

func TestLearningPath_UnlockNextNodes_EmptyIsStable(t *testing.T) {
	p := twoNodePath()
	p.RebuildFrontier()
	before := append([]string(nil), p.Progression.AvailableNodeIDs...)

	p.UnlockNextNodes(nil)

	after := p.Progression.AvailableNodeIDs
	if len(before) != len(after) {
		t.Fatalf("frontier changed: %v -> %v", before, after)
	}
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("frontier changed: %v -> %v", before, after)
		}
	}
}

func TestLearningPath_FrontierSoundness(t *testing.T) {
	p := twoNodePath()
	p.Progression.Nodes["A"].Completed = true
	p.UnlockNextNodes([]string{"B"})

	// Every frontier member's required nodes must be completed.
	for _, id := range p.Progression.AvailableNodeIDs {
		node := p.Progression.Nodes[id]
		for _, req := range node.Unlock.RequiredNodes {
			if !p.Progression.Nodes[req].Completed {
				t.Errorf("frontier node %s has incomplete prerequisite %s", id, req)
			}
		}
	}
}

func TestLearningPath_UnlockNextNodes_MissingCandidate(t *testing.T) {
	p := twoNodePath()
	// Must not panic, and the edge is skipped.
	p.UnlockNextNodes([]string{"ghost"})
}

func TestLearningPath_CompleteExercise(t *testing.T) {
	p := twoNodePath()

	if err := p.CompleteExercise("A", CompletionMetrics{Accuracy: 0.9}); err != nil {
		t.Fatalf("CompleteExercise() error = %v", err)
	}

	ex, _ := p.Exercise("A")
	if ex.Status != ExerciseCompleted {
		t.Errorf("A status = %s; want completed", ex.Status)
	}
	if got := p.Progress.Exercises.Completed; got != 1 {
		t.Errorf("Completed = %d; want 1", got)
	}
	if got := p.Progress.Overall; got != 0.5 {
		t.Errorf("Overall = %v; want 0.5", got)
	}
	// Two critical pronunciation exercises: increment is 1/2.
	if got := p.Progress.BySkill[AssessmentPronunciation]; got != 0.5 {
		t.Errorf("BySkill[pronunciation] = %v; want 0.5", got)
	}
	// A's completion unlocks B.
	if !p.IsAvailable("B") {
		t.Error("IsAvailable(B) = false after completing A")
	}
	if !containsID(p.Progression.AvailableNodeIDs, "B") {
		t.Errorf("AvailableNodeIDs = %v; want B", p.Progression.AvailableNodeIDs)
	}
}

func TestLearningPath_CompleteExercise_Idempotent(t *testing.T) {
	p := twoNodePath()
	if err := p.CompleteExercise("A", CompletionMetrics{}); err != nil {
		t.Fatalf("CompleteExercise() error = %v", err)
	}
	if err := p.CompleteExercise("A", CompletionMetrics{}); err != nil {
		t.Fatalf("CompleteExercise() second call error = %v", err)
	}
	if got := p.Progress.Exercises.Completed; got != 1 {
		t.Errorf("Completed = %d; want 1 after duplicate completion", got)
	}
}

func TestLearningPath_CompleteExercise_NotFound(t *testing.T) {
	p := twoNodePath()
	if err := p.CompleteExercise("nope", CompletionMetrics{}); !errors.Is(err, ErrExerciseNotFound) {
		t.Errorf("CompleteExercise(nope) error = %v; want ErrExerciseNotFound", err)
	}
}

func TestLearningPath_SkillProgressClamped(t *testing.T) {
	p := twoNodePath()
	// Shrink to one critical exercise so each completion adds 1.0.
	p.Exercises[BucketCritical] = p.Exercises[BucketCritical][:1]
	p.Exercises[BucketPractice] = []*PathExercise{
		{ID: "C", Skill: AssessmentPronunciation, Bucket: BucketPractice, Status: ExerciseAvailable},
	}
	p.Progression.Nodes["C"] = &Node{Type: NodeExercise}
	p.Progress.Exercises.Total = 2

	p.CompleteExercise("A", CompletionMetrics{})
	p.CompleteExercise("C", CompletionMetrics{})

	if got := p.Progress.BySkill[AssessmentPronunciation]; got != 1.0 {
		t.Errorf("BySkill = %v; want clamped to 1.0", got)
	}
}

func TestLearningPath_RecentRingBounded(t *testing.T) {
	p := &LearningPath{
		Skills:      map[AssessmentType]Skill{},
		Exercises:   map[ExerciseBucket][]*PathExercise{},
		Challenges:  map[ChallengeBucket][]*Challenge{},
		Progression: Progression{Nodes: map[string]*Node{}},
		Progress:    Progress{BySkill: map[AssessmentType]float64{}},
	}
	for i := 0; i < 25; i++ {
		p.recordRecent(RecentCompletion{ExerciseID: "x", CompletedAt: time.Now()})
	}
	if got := len(p.Progress.Exercises.Recent); got != maxRecentCompletions {
		t.Errorf("len(Recent) = %d; want %d", got, maxRecentCompletions)
	}
}

func TestLearningPath_Streak(t *testing.T) {
	p := twoNodePath()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	p.bumpStreak(now)
	if p.Progress.Streak.Current != 1 {
		t.Fatalf("streak = %d; want 1", p.Progress.Streak.Current)
	}

	// Same day does not extend.
	p.bumpStreak(now.Add(2 * time.Hour))
	if p.Progress.Streak.Current != 1 {
		t.Errorf("streak = %d after same-day activity; want 1", p.Progress.Streak.Current)
	}

	// Next day extends.
	p.bumpStreak(now.AddDate(0, 0, 1))
	if p.Progress.Streak.Current != 2 {
		t.Errorf("streak = %d after next-day activity; want 2", p.Progress.Streak.Current)
	}

	// A gap resets, best is retained.
	p.bumpStreak(now.AddDate(0, 0, 5))
	if p.Progress.Streak.Current != 1 || p.Progress.Streak.Best != 2 {
		t.Errorf("streak = %d best = %d; want 1 and 2",
			p.Progress.Streak.Current, p.Progress.Streak.Best)
	}
}

func TestLearningPath_OrderedNodeIDs(t *testing.T) {
	p := twoNodePath()
	// Reverse encounter order so the sort has work to do.
	p.Exercises[BucketCritical][0], p.Exercises[BucketCritical][1] =
		p.Exercises[BucketCritical][1], p.Exercises[BucketCritical][0]

	order := p.OrderedNodeIDs()
	posA, posB := indexOf(order, "A"), indexOf(order, "B")
	if posA < 0 || posB < 0 {
		t.Fatalf("OrderedNodeIDs() = %v; missing nodes", order)
	}
	if posB < posA {
		t.Errorf("OrderedNodeIDs() = %v; B sorts before its pending prerequisite A", order)
	}
}

func TestLearningPath_OrderedNodeIDs_CycleTerminates(t *testing.T) {
	p := twoNodePath()
	p.Progression.Nodes["A"].Unlock.RequiredNodes = []string{"B"}

	order := p.OrderedNodeIDs()
	if len(order) != 2 {
		t.Errorf("OrderedNodeIDs() = %v; want both nodes despite cycle", order)
	}
}

func containsID(ids []string, id string) bool {
	return indexOf(ids, id) >= 0
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
