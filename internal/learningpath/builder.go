// Package learningpath materializes and maintains per-user learning
// paths: building them from assessment results, tracking availability
// through the progression graph, and folding in exercise completions.
package learningpath

import (
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/polyglot/internal/domain"
)

// Bucket thresholds over assessment scores. A skill below weakThreshold
// needs critical work; below solidThreshold it still gets recommended
// material; at or above it only practice.
const (
	weakThreshold  = 0.6
	solidThreshold = 0.8
)

// targetStep is how far above the assessed level each skill target sits.
const targetStep = 0.25

// BuildPath derives a learning path from an assessment result. The
// output is deterministic for a given result: skills iterate in the
// fixed assessment order and exercise IDs encode skill, bucket, and
// position, so rebuilding from the same result yields the same path.
func BuildPath(userID string, result *domain.AssessmentResult) *domain.LearningPath {
	now := time.Now()
	path := &domain.LearningPath{
		UserID:     userID,
		Skills:     make(map[domain.AssessmentType]domain.Skill),
		Exercises:  make(map[domain.ExerciseBucket][]*domain.PathExercise),
		Challenges: make(map[domain.ChallengeBucket][]*domain.Challenge),
		Progression: domain.Progression{
			Nodes:        make(map[string]*domain.Node),
			Dependencies: make(map[string][]string),
		},
		Progress: domain.Progress{
			BySkill: make(map[domain.AssessmentType]float64),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	var weakest []domain.AssessmentType
	for _, skill := range domain.AssessmentOrder() {
		score := result.Score(skill)
		target := score + targetStep
		if target > 1 {
			target = 1
		}
		path.Skills[skill] = domain.Skill{
			Current:        score,
			Target:         target,
			CriticalPoints: result.CriticalPoints[skill],
		}
		path.Progress.BySkill[skill] = 0
		if score < weakThreshold {
			weakest = append(weakest, skill)
		}

		buildSkillChain(path, skill, score)
	}

	buildChallenges(path, weakest)
	linkProgression(path)

	path.Progress.Exercises.Total = countExercises(path)
	path.RebuildFrontier()
	applyFrontierStatus(path)

	return path
}

// buildSkillChain adds the exercise chain for one skill. Exercises
// within a skill are sequential: each requires the previous one.
func buildSkillChain(path *domain.LearningPath, skill domain.AssessmentType, score float64) {
	type slot struct {
		bucket domain.ExerciseBucket
		count  int
	}
	var plan []slot
	switch {
	case score < weakThreshold:
		plan = []slot{{domain.BucketCritical, 2}, {domain.BucketRecommended, 1}}
	case score < solidThreshold:
		plan = []slot{{domain.BucketRecommended, 1}, {domain.BucketPractice, 1}}
	default:
		plan = []slot{{domain.BucketPractice, 1}}
	}

	var prev string
	for _, s := range plan {
		for i := 1; i <= s.count; i++ {
			id := exerciseID(skill, s.bucket, i)
			ex := &domain.PathExercise{
				ID:     id,
				Title:  exerciseTitle(skill, s.bucket, i),
				Skill:  skill,
				Bucket: s.bucket,
				Status: domain.ExerciseLocked,
			}
			if prev != "" {
				ex.Prerequisites = []string{prev}
			}
			path.Exercises[s.bucket] = append(path.Exercises[s.bucket], ex)

			node := &domain.Node{Type: domain.NodeExercise}
			if prev != "" {
				node.Unlock.RequiredNodes = []string{prev}
			}
			path.Progression.Nodes[id] = node
			prev = id
		}
	}
}

// buildChallenges adds one current and one upcoming challenge. The
// current challenge opens once the weakest skills' critical work is done;
// the upcoming one additionally demands the skill targets themselves.
func buildChallenges(path *domain.LearningPath, weakest []domain.AssessmentType) {
	skills := weakest
	if len(skills) == 0 {
		// No weak skills: challenge across the board instead.
		skills = domain.AssessmentOrder()
	}

	var required []string
	minLevels := make(map[domain.AssessmentType]float64)
	for _, skill := range skills {
		for _, ex := range path.Exercises[domain.BucketCritical] {
			if ex.Skill == skill {
				required = append(required, ex.ID)
			}
		}
		minLevels[skill] = path.Skills[skill].Current
	}

	current := &domain.Challenge{
		ID:             "challenge_checkpoint_1",
		Title:          "Checkpoint challenge",
		Skills:         skills,
		Bucket:         domain.ChallengeCurrent,
		Status:         domain.ChallengeLocked,
		MinSkillLevels: minLevels,
		Rewards:        domain.Rewards{XP: 100, SkillPoints: 10},
	}
	path.Challenges[domain.ChallengeCurrent] = append(path.Challenges[domain.ChallengeCurrent], current)
	path.Progression.Nodes[current.ID] = &domain.Node{
		Type: domain.NodeChallenge,
		Unlock: domain.UnlockCriteria{
			RequiredNodes:  required,
			RequiredSkills: minLevels,
		},
	}

	targetLevels := make(map[domain.AssessmentType]float64)
	for _, skill := range skills {
		targetLevels[skill] = path.Skills[skill].Target
	}
	upcoming := &domain.Challenge{
		ID:             "challenge_checkpoint_2",
		Title:          "Target-level challenge",
		Skills:         skills,
		Bucket:         domain.ChallengeUpcoming,
		Status:         domain.ChallengeLocked,
		MinSkillLevels: targetLevels,
		Rewards:        domain.Rewards{XP: 250, SkillPoints: 25},
	}
	path.Challenges[domain.ChallengeUpcoming] = append(path.Challenges[domain.ChallengeUpcoming], upcoming)
	path.Progression.Nodes[upcoming.ID] = &domain.Node{
		Type: domain.NodeChallenge,
		Unlock: domain.UnlockCriteria{
			RequiredNodes:  []string{current.ID},
			RequiredSkills: targetLevels,
		},
	}
}

// linkProgression derives the forward edges and the dependency index
// from each node's unlock criteria.
func linkProgression(path *domain.LearningPath) {
	for id, node := range path.Progression.Nodes {
		path.Progression.Dependencies[id] = node.Unlock.RequiredNodes
		for _, req := range node.Unlock.RequiredNodes {
			if dep, ok := path.Progression.Nodes[req]; ok {
				dep.NextNodes = append(dep.NextNodes, id)
			}
		}
	}
}

// applyFrontierStatus flips exercises and challenges on the freshly
// rebuilt frontier from locked to available.
func applyFrontierStatus(path *domain.LearningPath) {
	for _, id := range path.Progression.AvailableNodeIDs {
		node := path.Progression.Nodes[id]
		switch node.Type {
		case domain.NodeExercise:
			if ex, ok := path.Exercise(id); ok && ex.Status == domain.ExerciseLocked {
				ex.Status = domain.ExerciseAvailable
			}
		case domain.NodeChallenge:
			if ch, ok := path.Challenge(id); ok && ch.Status == domain.ChallengeLocked {
				ch.Status = domain.ChallengeAvailable
			}
		}
	}
}

func countExercises(path *domain.LearningPath) int {
	n := 0
	for _, bucket := range path.Exercises {
		n += len(bucket)
	}
	return n
}

func exerciseID(skill domain.AssessmentType, bucket domain.ExerciseBucket, i int) string {
	return fmt.Sprintf("%s_%s_%d", skill, bucket, i)
}

func exerciseTitle(skill domain.AssessmentType, bucket domain.ExerciseBucket, i int) string {
	label := strings.ToUpper(string(skill)[:1]) + string(skill)[1:]
	return fmt.Sprintf("%s %s %d", label, bucket, i)
}
