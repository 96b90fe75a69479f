package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"time"
)

// The daemon runs without session auth locally; the user is selected via
// the X-User-ID header and defaults to the single local user.
func localUser() string {
	if u := os.Getenv("POLYGLOT_USER"); u != "" {
		return u
	}
	return "local"
}

func apiDo(method, path string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequest(method, daemonAddr+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", localUser())

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("daemon not reachable (start it with 'polyglot start'): %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var envelope struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(data, &envelope) == nil && envelope.Error.Message != "" {
			return fmt.Errorf("%s", envelope.Error.Message)
		}
		return fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

type onboardingView struct {
	CurrentStep    string             `json:"current_step"`
	AssessmentType string             `json:"assessment_type"`
	Progress       float64            `json:"progress"`
	PromptLoaded   map[string]bool    `json:"prompt_loaded"`
	Submissions    map[string]subView `json:"submissions"`
	Languages      *languagesView     `json:"languages"`
	Result         *resultView        `json:"result"`
}

type languagesView struct {
	Native string `json:"native"`
	Target string `json:"target"`
}

type resultView struct {
	Level string `json:"level"`
}

type subView struct {
	State string `json:"state"`
	Error string `json:"error"`
}

// cmdOnboarding handles onboarding subcommands
func cmdOnboarding(args []string) error {
	if len(args) == 0 {
		return onboardingStatus()
	}

	switch args[0] {
	case "start":
		var view onboardingView
		if err := apiDo(http.MethodPost, "/api/v1/onboarding/assessment/start", nil, &view); err != nil {
			return err
		}
		fmt.Printf("Assessment started. First up: %s\n", view.AssessmentType)
		return nil
	case "languages":
		if len(args) != 3 {
			return fmt.Errorf("usage: polyglot onboarding languages <native> <target>")
		}
		body := map[string]string{"native": args[1], "target": args[2]}
		var view onboardingView
		if err := apiDo(http.MethodPost, "/api/v1/onboarding/languages", body, &view); err != nil {
			return err
		}
		fmt.Printf("Learning %s (native %s). Run 'polyglot onboarding start' when ready.\n", args[2], args[1])
		return nil
	default:
		return fmt.Errorf("unknown onboarding subcommand: %s", args[0])
	}
}

func onboardingStatus() error {
	var view onboardingView
	if err := apiDo(http.MethodGet, "/api/v1/onboarding", nil, &view); err != nil {
		return err
	}

	fmt.Printf("Step:     %s\n", view.CurrentStep)
	fmt.Printf("Progress: %s %.0f%%\n", renderProgressBar(view.Progress/100, 20), view.Progress)
	if view.Languages != nil {
		fmt.Printf("Learning: %s → native %s\n", view.Languages.Target, view.Languages.Native)
	}
	if view.AssessmentType != "" {
		fmt.Printf("Active:   %s\n", view.AssessmentType)
	}

	if len(view.Submissions) > 0 {
		fmt.Println("Assessments:")
		types := make([]string, 0, len(view.Submissions))
		for t := range view.Submissions {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			sub := view.Submissions[t]
			line := fmt.Sprintf("  %-14s %s", t, sub.State)
			if sub.Error != "" {
				line += " (" + sub.Error + ")"
			}
			fmt.Println(line)
		}
	}

	if view.Result != nil {
		fmt.Printf("Level:    %s\n", view.Result.Level)
	}

	return nil
}

type pathView struct {
	Skills map[string]struct {
		Current float64 `json:"current_level"`
		Target  float64 `json:"target_level"`
	} `json:"skills"`
	Progression struct {
		AvailableNodeIDs []string `json:"available_node_ids"`
	} `json:"progression"`
	Progress struct {
		Overall   float64 `json:"overall"`
		Exercises struct {
			Completed int `json:"completed"`
			Total     int `json:"total"`
		} `json:"exercises"`
		Streak struct {
			Current int `json:"current"`
			Best    int `json:"best"`
		} `json:"streak"`
	} `json:"progress"`
}

// cmdPath handles learning path subcommands
func cmdPath(args []string) error {
	var view pathView
	if err := apiDo(http.MethodGet, "/api/v1/path", nil, &view); err != nil {
		return err
	}

	if len(args) > 0 && args[0] == "next" {
		fmt.Println("Unlocked:")
		for _, id := range view.Progression.AvailableNodeIDs {
			fmt.Printf("  %s\n", id)
		}
		return nil
	}

	fmt.Printf("Overall:  %s %.0f%% (%d/%d exercises)\n",
		renderProgressBar(view.Progress.Overall, 20),
		view.Progress.Overall*100,
		view.Progress.Exercises.Completed,
		view.Progress.Exercises.Total,
	)
	fmt.Printf("Streak:   %d days (best %d)\n", view.Progress.Streak.Current, view.Progress.Streak.Best)

	fmt.Println("Skills:")
	skills := make([]string, 0, len(view.Skills))
	for s := range view.Skills {
		skills = append(skills, s)
	}
	sort.Strings(skills)
	for _, s := range skills {
		sk := view.Skills[s]
		fmt.Printf("  %-14s %s %.2f → %.2f\n", s, renderProgressBar(sk.Current, 20), sk.Current, sk.Target)
	}

	fmt.Printf("Unlocked: %d nodes (see 'polyglot path next')\n", len(view.Progression.AvailableNodeIDs))

	return nil
}

// cmdReset restarts onboarding and discards the learning path
func cmdReset() error {
	if err := apiDo(http.MethodPost, "/api/v1/onboarding/reset", nil, nil); err != nil {
		return err
	}
	fmt.Println("Onboarding reset. Run 'polyglot onboarding languages <native> <target>' to begin again.")
	return nil
}
