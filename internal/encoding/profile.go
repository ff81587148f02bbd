package encoding

import (
	"fmt"
	"strings"
)

// padFilter letterboxes the input onto a 9:16 canvas and caps the resolution,
// matching what mobile clients expect for full-screen playback.
const padFilter = "pad=iw:ceil(iw*16/9):0:(oh-ih)/2:color=black,setsar=1,scale='if(gt(iw,720),720,iw)':'if(gt(ih,1280),1280,ih)'"

// Profile is one named encoder parameter set. The pipeline treats the choice
// as configuration; both profiles share the same filter chain and container
// flags and differ only in codec selection and quality controls.
type Profile struct {
	Name       string
	VideoCodec string
	Filter     string
	CRF        string
	ExtraArgs  []string
}

var profiles = map[string]Profile{
	// Widest playback compatibility: H.265 with the hvc1 tag Apple players need.
	"compat": {
		Name:       "compat",
		VideoCodec: "libx265",
		Filter:     padFilter,
		CRF:        "10",
		ExtraArgs:  []string{"-vtag", "hvc1"},
	},
	// Smaller output via AV1 for clients that can decode it.
	"compact": {
		Name:       "compact",
		VideoCodec: "libsvtav1",
		Filter:     padFilter,
		CRF:        "32",
	},
}

// ProfileFor resolves a configured profile name.
func ProfileFor(name string) (Profile, error) {
	profile, ok := profiles[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Profile{}, fmt.Errorf("unknown encoder profile %q", name)
	}
	return profile, nil
}

// Args builds the full ffmpeg argument list for one invocation.
func (p Profile) Args(inputPath, outputPath string) []string {
	args := []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-movflags", "faststart",
		"-pix_fmt", "yuv420p",
		"-vf", p.Filter,
		"-c:v", p.VideoCodec,
		"-crf", p.CRF,
		"-b:v", "0",
	}
	args = append(args, p.ExtraArgs...)
	args = append(args, outputPath)
	return args
}
