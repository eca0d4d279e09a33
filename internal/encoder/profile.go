package encoder

import "fmt"

// Profile builds the argument list for one encoding strategy.
type Profile struct {
	Name string
	Args func(imagePath, audioPath, outputPath string) []string
}

// scaleFilter bounds the longer edge to maxEdge, keeps the aspect ratio, and
// rounds both dimensions to even values as yuv420p encoders require.
func scaleFilter(maxEdge int) string {
	return fmt.Sprintf(
		"scale='min(%d,iw)':'min(%d,ih)':force_original_aspect_ratio=decrease:force_divisible_by=2",
		maxEdge, maxEdge,
	)
}

// PrimaryProfile loops the still image under the audio with H.264/AAC in an
// MP4 that starts playing before it is fully downloaded.
func PrimaryProfile(maxEdge int) Profile {
	return Profile{
		Name: "primary",
		Args: func(imagePath, audioPath, outputPath string) []string {
			return []string{
				"-hide_banner", "-y",
				"-loop", "1", "-i", imagePath,
				"-i", audioPath,
				"-map", "0:v:0", "-map", "1:a:0",
				"-c:v", "libx264", "-tune", "stillimage", "-preset", "veryfast",
				"-pix_fmt", "yuv420p",
				"-vf", scaleFilter(maxEdge),
				"-c:a", "aac", "-b:a", "192k",
				"-shortest",
				"-movflags", "+faststart",
				outputPath,
			}
		},
	}
}

// FallbackProfile trades quality for tolerance: MPEG-4 Part 2 at one frame
// per second, which succeeds on builds without libx264.
func FallbackProfile(maxEdge int) Profile {
	return Profile{
		Name: "fallback",
		Args: func(imagePath, audioPath, outputPath string) []string {
			return []string{
				"-hide_banner", "-y",
				"-loop", "1", "-framerate", "1", "-i", imagePath,
				"-i", audioPath,
				"-map", "0:v:0", "-map", "1:a:0",
				"-c:v", "mpeg4", "-q:v", "5", "-r", "1",
				"-pix_fmt", "yuv420p",
				"-vf", scaleFilter(maxEdge),
				"-c:a", "aac",
				"-shortest",
				outputPath,
			}
		},
	}
}
