package router

import "testing"

func TestRouteGIFUpload(t *testing.T) {
	decision := Route(Event{
		Path:        "gifs/pgn2gif_1700000000000.gif",
		ContentType: "image/gif",
		Metadata:    map[string]string{"uuid": "abc-123", "userId": "user-1"},
	})
	if decision == nil {
		t.Fatal("expected a routing decision")
	}
	if decision.Stage != StageGIFToVideo {
		t.Fatalf("expected gif-to-video stage, got %s", decision.Stage)
	}
	if decision.UUID != "abc-123" || decision.UserID != "user-1" {
		t.Fatalf("unexpected identifiers: %#v", decision)
	}
	if decision.GeneratePGN {
		t.Fatal("gif uploads never request notation extraction")
	}
}

func TestRouteUploadedVideo(t *testing.T) {
	decision := Route(Event{
		Path:        "tmp/9f0c2d.mp4",
		ContentType: "video/mp4",
		Metadata:    map[string]string{"userId": "user-2", "generatePgn": "true"},
	})
	if decision == nil {
		t.Fatal("expected a routing decision")
	}
	if decision.Stage != StageTranscode {
		t.Fatalf("expected transcode stage, got %s", decision.Stage)
	}
	if decision.UUID != "9f0c2d" {
		t.Fatalf("uuid should come from the filename stem, got %q", decision.UUID)
	}
	if !decision.GeneratePGN {
		t.Fatal("expected notation extraction to be requested")
	}
}

func TestRouteUploadedVideoWithoutExtraction(t *testing.T) {
	decision := Route(Event{
		Path:        "tmp/clip.mp4",
		ContentType: "video/mp4",
		Metadata:    map[string]string{"generatePgn": "false"},
	})
	if decision == nil {
		t.Fatal("expected a routing decision")
	}
	if decision.GeneratePGN {
		t.Fatal("extraction should not be requested")
	}
}

func TestRouteIgnoresUnrelatedObjects(t *testing.T) {
	cases := map[string]Event{
		"final video output": {Path: "videos/abc.mp4", ContentType: "video/mp4"},
		"wrong content type": {Path: "gifs/a.gif", ContentType: "text/plain", Metadata: map[string]string{"uuid": "a", "userId": "u"}},
		"gif without uuid":   {Path: "gifs/a.gif", ContentType: "image/gif", Metadata: map[string]string{"userId": "u"}},
		"gif without user":   {Path: "gifs/a.gif", ContentType: "image/gif", Metadata: map[string]string{"uuid": "a"}},
		"tmp non-video":      {Path: "tmp/readme.txt", ContentType: "text/plain"},
		"extraction no user": {Path: "tmp/x.mp4", ContentType: "video/mp4", Metadata: map[string]string{"generatePgn": "true"}},
		"empty path":         {Path: "", ContentType: "image/gif"},
		"root object":        {Path: "notes.md", ContentType: "text/markdown"},
	}
	for name, event := range cases {
		if decision := Route(event); decision != nil {
			t.Errorf("%s: expected nil decision, got %#v", name, decision)
		}
	}
}

func TestRouteIsDeterministic(t *testing.T) {
	event := Event{
		Path:        "tmp/abc.mp4",
		ContentType: "video/mp4",
		Metadata:    map[string]string{"userId": "u", "generatePgn": "true"},
	}
	first := Route(event)
	second := Route(event)
	if first == nil || second == nil {
		t.Fatal("expected decisions on both deliveries")
	}
	if *first != *second {
		t.Fatalf("redelivery changed the decision: %#v vs %#v", first, second)
	}
}
