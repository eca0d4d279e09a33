package tracks_test

import (
	"testing"

	"trackline/internal/tracks"
)

func TestSetProgressNeverDecreases(t *testing.T) {
	track := &tracks.Track{Status: tracks.StatusProcessing}
	observed := []int{track.Progress}
	steps := []struct {
		stage   string
		percent int
	}{
		{tracks.StageAudio, tracks.ProgressAudio},
		{tracks.StageImage, tracks.ProgressImage},
		{tracks.StageAudio, tracks.ProgressAudio},
		{tracks.StageVideo, tracks.ProgressVideo},
		{tracks.StageTags, 150},
	}
	for _, step := range steps {
		track.SetProgress(step.stage, step.percent)
		observed = append(observed, track.Progress)
	}
	for i := 1; i < len(observed); i++ {
		if observed[i] < observed[i-1] {
			t.Fatalf("progress decreased: %v", observed)
		}
	}
	if track.Progress != tracks.ProgressComplete {
		t.Fatalf("expected progress clamped to 100, got %d", track.Progress)
	}
	if track.ProgressStage != tracks.StageTags {
		t.Fatalf("expected stage label to follow latest call, got %q", track.ProgressStage)
	}
}

func TestSetFailedFreezesProgress(t *testing.T) {
	track := &tracks.Track{Status: tracks.StatusProcessing, Progress: tracks.ProgressImage}
	track.SetFailed("  ")
	if track.Status != tracks.StatusFailed || track.Progress != tracks.ProgressImage {
		t.Fatalf("unexpected state after failure: %+v", track)
	}
	if track.ErrorMessage == "" {
		t.Fatal("expected default error message")
	}
	if err := track.Validate(); err != nil {
		t.Fatalf("failed track should validate: %v", err)
	}
}

func TestSetCompletedRequiresAllPaths(t *testing.T) {
	track := &tracks.Track{Status: tracks.StatusProcessing, AudioPath: "/a", ImagePath: "/i"}
	if err := track.SetCompleted(); err == nil {
		t.Fatal("expected error without video path")
	}
	if track.Status != tracks.StatusProcessing {
		t.Fatalf("status changed despite error: %s", track.Status)
	}
	track.VideoPath = "/v"
	track.ErrorMessage = "old"
	if err := track.SetCompleted(); err != nil {
		t.Fatalf("SetCompleted: %v", err)
	}
	if track.Progress != 100 || track.ErrorMessage != "" {
		t.Fatalf("unexpected completed state: %+v", track)
	}
}

func TestValidateInvariants(t *testing.T) {
	tests := []struct {
		name    string
		track   tracks.Track
		wantErr bool
	}{
		{"pending", tracks.Track{Status: tracks.StatusPending}, false},
		{"unknown status", tracks.Track{Status: "paused"}, true},
		{"progress range", tracks.Track{Status: tracks.StatusProcessing, Progress: 101}, true},
		{"completed missing path", tracks.Track{Status: tracks.StatusCompleted, Progress: 100, AudioPath: "a", ImagePath: "i"}, true},
		{"completed wrong progress", tracks.Track{Status: tracks.StatusCompleted, Progress: 90, AudioPath: "a", ImagePath: "i", VideoPath: "v"}, true},
		{"failed without message", tracks.Track{Status: tracks.StatusFailed}, true},
		{"failed with message", tracks.Track{Status: tracks.StatusFailed, ErrorMessage: "boom"}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.track.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestResetToPendingClearsState(t *testing.T) {
	track := &tracks.Track{
		Status:       tracks.StatusCompleted,
		Progress:     100,
		ErrorMessage: "x",
		AudioPath:    "/a",
		ImagePath:    "/i",
		VideoPath:    "/v",
	}
	track.ResetToPending(false)
	if track.Status != tracks.StatusPending || track.Progress != 0 || track.ErrorMessage != "" {
		t.Fatalf("unexpected reset state: %+v", track)
	}
	if track.VideoPath == "" {
		t.Fatal("expected paths kept when clearPaths=false")
	}
	track.ResetToPending(true)
	if len(track.AssetPaths()) != 0 {
		t.Fatalf("expected paths cleared, got %v", track.AssetPaths())
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := tracks.ParseStatus(" Failed "); !ok || status != tracks.StatusFailed {
		t.Fatalf("ParseStatus mismatch: %q %v", status, ok)
	}
	if _, ok := tracks.ParseStatus("review"); ok {
		t.Fatal("expected unknown status to be rejected")
	}
}
