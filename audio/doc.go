// Package audio transcodes incoming voice and audio files into the canonical
// format sent to the transcription model: 16-bit PCM WAV, mono, 16 kHz by default.
//
// Transcoding is delegated to ffmpeg. The produced file is checked by walking
// its RIFF chunks so a broken conversion fails before any model call is made.
package audio
