package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
)

const (
	EncodingWebMOpus = "audio/webm;codecs=opus"
	EncodingWebM     = "audio/webm"
	EncodingMP4      = "audio/mp4"
	EncodingOggOpus  = "audio/ogg;codecs=opus"
	// EncodingDefault is the platform default and is always available.
	EncodingDefault = ""

	mimeWAV = "audio/wav"
	mimeMP3 = "audio/mpeg"

	pcmChannels = 1
	pcmBitDepth = 16
)

// PickEncoding returns the first preference the encoder supports, falling back
// to EncodingDefault.
func PickEncoding(prefs []string, supports func(string) bool) string {
	for _, mime := range prefs {
		if mime == EncodingDefault || supports(mime) {
			return mime
		}
	}
	return EncodingDefault
}

type runFunc func(ctx context.Context, name string, args []string, stdin []byte) ([]byte, error)

// Encoder turns raw PCM16-LE mono into a container. ffmpeg handles the
// preference list; lame and a plain WAV wrapper are the fallbacks.
type Encoder struct {
	ffmpeg   string
	lookPath func(string) (string, error)
	run      runFunc
	logger   *slog.Logger
}

func NewEncoder(ffmpegCommand string) *Encoder {
	if ffmpegCommand == "" {
		ffmpegCommand = "ffmpeg"
	}
	return &Encoder{
		ffmpeg:   ffmpegCommand,
		lookPath: exec.LookPath,
		run:      runCommand,
		logger:   slog.Default(),
	}
}

// Supports reports whether mime can be produced on this machine.
func (e *Encoder) Supports(mime string) bool {
	if mime == EncodingDefault {
		return true
	}
	if _, ok := ffmpegFormats[mime]; !ok {
		return false
	}
	_, err := e.lookPath(e.ffmpeg)
	return err == nil
}

var ffmpegFormats = map[string][]string{
	EncodingWebMOpus: {"-c:a", "libopus", "-f", "webm"},
	EncodingWebM:     {"-c:a", "libopus", "-f", "webm"},
	EncodingMP4:      {"-c:a", "aac", "-movflags", "frag_keyframe+empty_moov", "-f", "mp4"},
	EncodingOggOpus:  {"-c:a", "libopus", "-f", "ogg"},
}

// Encode returns the payload and the MIME type it actually carries, which
// differs from mime when a fallback was used.
func (e *Encoder) Encode(ctx context.Context, pcm []byte, sampleRate int, mime string) ([]byte, string, error) {
	if sampleRate <= 0 {
		sampleRate = 16000
	}

	if mime != EncodingDefault {
		out, err := e.encodeWithFFmpeg(ctx, pcm, sampleRate, mime)
		if err == nil {
			return out, mime, nil
		}
		e.logger.Warn("ffmpeg encode failed, falling back", "encoding", mime, "error", err)

		out, err = e.encodeWithLame(ctx, pcm, sampleRate)
		if err == nil {
			return out, mimeMP3, nil
		}
		e.logger.Warn("lame encode failed, falling back to wav", "error", err)
	}

	out, err := pcmToWav(pcm, sampleRate)
	if err != nil {
		return nil, "", fmt.Errorf("encode wav fallback: %w", err)
	}
	return out, mimeWAV, nil
}

func (e *Encoder) encodeWithFFmpeg(ctx context.Context, pcm []byte, sampleRate int, mime string) ([]byte, error) {
	format, ok := ffmpegFormats[mime]
	if !ok {
		return nil, fmt.Errorf("unsupported encoding %q", mime)
	}

	args := []string{
		"-nostdin", "-hide_banner", "-loglevel", "error",
		"-f", "s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", strconv.Itoa(pcmChannels),
		"-i", "pipe:0",
	}
	args = append(args, format...)
	args = append(args, "pipe:1")

	return e.run(ctx, e.ffmpeg, args, pcm)
}

func (e *Encoder) encodeWithLame(ctx context.Context, pcm []byte, sampleRate int) ([]byte, error) {
	khz := float64(sampleRate) / 1000.0
	args := []string{
		"-r",
		"-s", strconv.FormatFloat(khz, 'f', -1, 64),
		"--bitwidth", strconv.Itoa(pcmBitDepth),
		"-m", "m",
		"--quiet",
		"-", "-",
	}
	return e.run(ctx, "lame", args, pcm)
}

func runCommand(ctx context.Context, name string, args []string, stdin []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("%s produced no output", name)
	}
	return stdout.Bytes(), nil
}

func pcmToWav(pcm []byte, sampleRate int) ([]byte, error) {
	header, err := wavHeader(len(pcm), sampleRate, pcmChannels, pcmBitDepth)
	if err != nil {
		return nil, fmt.Errorf("build wav header: %w", err)
	}

	out := make([]byte, 0, len(header)+len(pcm))
	out = append(out, header...)
	out = append(out, pcm...)
	return out, nil
}

func wavHeader(dataSize, sampleRate, channels, bitDepth int) ([]byte, error) {
	byteRate := sampleRate * channels * bitDepth / 8
	blockAlign := channels * bitDepth / 8

	buf := bytes.NewBuffer(make([]byte, 0, 44))
	buf.WriteString("RIFF")
	if err := binary.Write(buf, binary.LittleEndian, uint32(36+dataSize)); err != nil {
		return nil, err
	}
	buf.WriteString("WAVEfmt ")

	fmtChunk := []any{
		uint32(16),
		uint16(1),
		uint16(channels),
		uint32(sampleRate),
		uint32(byteRate),
		uint16(blockAlign),
		uint16(bitDepth),
	}
	for _, f := range fmtChunk {
		if err := binary.Write(buf, binary.LittleEndian, f); err != nil {
			return nil, err
		}
	}

	buf.WriteString("data")
	if err := binary.Write(buf, binary.LittleEndian, uint32(dataSize)); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
