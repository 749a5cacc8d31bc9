package opus

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os/exec"

	"github.com/jonas747/ogg"
)

// EncodeOptions control the FFmpeg transcode.
type EncodeOptions struct {
	// Bitrate in bits per second. Zero means 64000.
	Bitrate int
	// Volume is a percentage, 100 meaning unchanged. Zero means 100.
	Volume int
}

func (o EncodeOptions) bitrate() int {
	if o.Bitrate <= 0 {
		return 64000
	}
	return o.Bitrate
}

func (o EncodeOptions) volume() int {
	if o.Volume <= 0 {
		return 100
	}
	return o.Volume
}

// Encode takes any audio as an io.Reader, runs FFmpeg to transcode it to
// Opus at 48kHz stereo with 20ms frames, and returns an io.ReadCloser
// that produces length-prefixed Opus frames. The caller should read
// until EOF. Closing the returned reader tears down the FFmpeg process
// and closes r if it is an io.Closer.
func Encode(r io.Reader, opts EncodeOptions) (io.ReadCloser, error) {
	args := []string{
		"-i", "pipe:0",
		"-vn",
		"-map", "0:a",
		"-acodec", "libopus",
		"-f", "ogg",
		"-vbr", "on",
		"-compression_level", "10",
		"-ar", "48000",
		"-ac", "2",
		"-b:a", fmt.Sprintf("%d", opts.bitrate()),
		"-application", "audio",
		"-frame_duration", "20",
		"-packet_loss", "1",
		"-threads", "0",
	}
	if v := opts.volume(); v != 100 {
		args = append(args, "-filter:a", fmt.Sprintf("volume=%d/100", v))
	}
	args = append(args, "pipe:1")

	ffmpeg := exec.Command("ffmpeg", args...)
	ffmpeg.Stdin = r

	stdout, err := ffmpeg.StdoutPipe()
	if err != nil {
		return nil, err
	}

	if err := ffmpeg.Start(); err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()

	go func() {
		defer pw.Close()
		defer ffmpeg.Wait()

		decoder := ogg.NewPacketDecoder(ogg.NewDecoder(stdout))

		// Skip the first 2 OGG metadata packets.
		skip := 2
		for {
			packet, _, err := decoder.Decode()
			if skip > 0 {
				skip--
				continue
			}
			if err != nil {
				if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
					pw.CloseWithError(err)
				}
				return
			}

			var lenBuf [2]byte
			binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(packet)))
			if _, err := pw.Write(lenBuf[:]); err != nil {
				return
			}
			if _, err := pw.Write(packet); err != nil {
				return
			}
		}
	}()

	return &encodeCloser{ReadCloser: pr, cmd: ffmpeg, src: r}, nil
}

// encodeCloser wraps the pipe reader and ensures the FFmpeg process
// and the source stream are cleaned up.
type encodeCloser struct {
	io.ReadCloser
	cmd *exec.Cmd
	src io.Reader
}

func (e *encodeCloser) Close() error {
	err := e.ReadCloser.Close()
	// Kill FFmpeg if still running (e.g. pipe closed early).
	if e.cmd.Process != nil {
		e.cmd.Process.Kill()
	}
	e.cmd.Wait()
	if c, ok := e.src.(io.Closer); ok {
		c.Close()
	}
	return err
}
