// Package sink implements the effective sink of spec.md §4.9 ("Effective
// sink (C9)"): the hot-path ingest pipeline (encode → compress → encrypt →
// append into a double-buffered mmap cache), its ratio-triggered
// master/slave swap, the dedicated-strand async flusher with file rolling,
// and the retention sweep. It ties together bytebuf/mmapbuf (C1/C2),
// zstdcodec (C3), crypt (C4), logfile (C10), and strand (C8).
//
// The construction and recovery sequence mirrors the teacher's LogFactory
// idiom of building components from a single config struct
// (original_source/mylogger/sinks/effective_sink.cpp), and the retry loop
// around a failed flush is grounded on internal/retry, generalizing the
// teacher's retry package.
package sink

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/TMac-wei/mylogger/bytebuf"
	"github.com/TMac-wei/mylogger/crypt"
	"github.com/TMac-wei/mylogger/internal/errors"
	"github.com/TMac-wei/mylogger/internal/logctx"
	"github.com/TMac-wei/mylogger/internal/multierror"
	"github.com/TMac-wei/mylogger/internal/retry"
	"github.com/TMac-wei/mylogger/logfile"
	"github.com/TMac-wei/mylogger/mmapbuf"
	"github.com/TMac-wei/mylogger/record"
	"github.com/TMac-wei/mylogger/strand"
	"github.com/TMac-wei/mylogger/zstdcodec"
)

// Config holds the enumerated sink options of spec.md §6 ("Sink
// configuration").
type Config struct {
	// Directory is the root directory for cache files and rolling log
	// files; it is created if absent.
	Directory string
	// FilePrefix precedes the timestamp in rolling log file names.
	FilePrefix string
	// ServerPublicKeyHex is the hex-encoded SEC1 uncompressed public key
	// used to agree the AES key for this sink's lifetime.
	ServerPublicKeyHex string
	// RetentionScanInterval is the period at which the retention sweep
	// runs. Default 5 minutes.
	RetentionScanInterval time.Duration
	// SingleFileSize is the max size of a single rolling log file.
	// Default 4 MiB.
	SingleFileSize int64
	// TotalFilesSize is the budget across all rolling log files.
	// Default 100 MiB.
	TotalFilesSize int64
}

// flushRetryDelay is how long flushTask waits before re-arming itself after
// a failed flush write, once appendChunkWithRetry's own bounded backoff is
// exhausted.
const flushRetryDelay = 2 * time.Second

func (c Config) withDefaults() Config {
	if c.FilePrefix == "" {
		c.FilePrefix = "mylogger"
	}
	if c.RetentionScanInterval <= 0 {
		c.RetentionScanInterval = 5 * time.Minute
	}
	if c.SingleFileSize <= 0 {
		c.SingleFileSize = 4 << 20
	}
	if c.TotalFilesSize <= 0 {
		c.TotalFilesSize = 100 << 20
	}
	return c
}

func (c Config) validate() error {
	if c.Directory == "" {
		return errors.E(errors.Config, "directory is required")
	}
	if c.ServerPublicKeyHex == "" {
		return errors.E(errors.Config, "server_public_key_hex is required")
	}
	return nil
}

// Sink is the effective sink: a hot-path ingest pipeline plus an
// asynchronous flusher bound to a dedicated strand runner.
type Sink struct {
	cfg Config

	mu     sync.Mutex
	master *mmapbuf.Buffer
	slave  *mmapbuf.Buffer
	zstd   *zstdcodec.Session
	aes    *crypt.AESCrypt

	slaveFree atomic.Bool

	scratch sync.Pool // per-call *bytebuf.Buffer holding the encoded record

	executor    *strand.Executor
	runnerID    uint64
	retentionID uint64

	ephemeralPub []byte

	// currentPath/currentSize are touched only on the sink's strand.
	currentPath string
	currentSize int64
}

// New builds a sink from cfg, running the startup and recovery sequence of
// spec.md §4.9.
func New(cfg Config) (*Sink, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
		return nil, errors.E(errors.Config, "create sink directory", err)
	}

	priv, pub, err := crypt.GenerateKeyPair()
	if err != nil {
		return nil, errors.E(errors.Config, "generate ephemeral key pair", err)
	}
	serverPub, err := crypt.HexDecode(cfg.ServerPublicKeyHex)
	if err != nil {
		return nil, errors.E(errors.Config, "decode server public key", err)
	}
	secret, err := crypt.SharedSecret(priv, serverPub)
	if err != nil {
		return nil, errors.E(errors.Config, "agree shared secret", err)
	}
	aesCodec, err := crypt.NewAESCrypt(secret)
	if err != nil {
		return nil, errors.E(errors.Config, "build aes codec", err)
	}
	zstdSession, err := zstdcodec.New()
	if err != nil {
		return nil, errors.E(errors.Config, "init zstd session", err)
	}

	master, err := mmapbuf.Open(filepath.Join(cfg.Directory, "master_cache"), mmapbuf.MinCapacity)
	if err != nil {
		return nil, err
	}
	if !master.IsValid() {
		master.Close()
		return nil, errors.E(errors.Corruption, "master cache file header is invalid")
	}
	slave, err := mmapbuf.Open(filepath.Join(cfg.Directory, "slave_cache"), mmapbuf.MinCapacity)
	if err != nil {
		master.Close()
		return nil, err
	}
	if !slave.IsValid() {
		master.Close()
		slave.Close()
		return nil, errors.E(errors.Corruption, "slave cache file header is invalid")
	}

	executor := strand.New()
	runnerID := executor.NewRunner(cfg.Directory)

	s := &Sink{
		cfg:          cfg,
		master:       master,
		slave:        slave,
		zstd:         zstdSession,
		aes:          aesCodec,
		executor:     executor,
		runnerID:     runnerID,
		ephemeralPub: pub,
	}
	s.slaveFree.Store(true)
	s.scratch.New = func() interface{} { return bytebuf.New(256) }

	s.recover()

	s.retentionID = executor.PostRepeated(runnerID, s.retentionSweep, cfg.RetentionScanInterval, strand.Forever)
	return s, nil
}

// recover implements spec.md §4.9 startup step 5: flush any slave payload
// left dirty by a prior crash, then swap and flush any master payload that
// never made it into the slave before the crash.
func (s *Sink) recover() {
	if !s.slave.Empty() {
		s.slaveFree.Store(false)
		s.executor.Post(s.runnerID, s.flushTask)
		s.waitForRunnerIdle()
	}
	if !s.master.Empty() && s.slaveFree.CompareAndSwap(true, false) {
		s.swapBuffers()
		s.executor.Post(s.runnerID, s.flushTask)
		s.waitForRunnerIdle()
	}
}

// swapBuffers exchanges master and slave under s.mu. Callers must already
// have won the slaveFree CompareAndSwap(true, false) race.
func (s *Sink) swapBuffers() {
	s.mu.Lock()
	s.master, s.slave = s.slave, s.master
	s.mu.Unlock()
}

// Log formats, compresses, and encrypts rec and appends it to the hot
// buffer. It never returns an error to the caller: codec and I/O failures
// are logged and the record is dropped, per spec.md §7's propagation
// policy.
func (s *Sink) Log(rec record.Record) {
	scratch := s.scratch.Get().(*bytebuf.Buffer)
	defer s.scratch.Put(scratch)
	scratch.Clear()
	scratch.Append(encodeOrPlaceholder(rec))

	s.mu.Lock()
	compressed, err := s.zstd.Compress(scratch.Data())
	if err != nil {
		s.mu.Unlock()
		logctx.Errorf("sink: compress failed, dropping record: %v", err)
		return
	}
	cipher, err := s.aes.Encrypt(compressed)
	if err != nil {
		s.mu.Unlock()
		logctx.Errorf("sink: encrypt failed, dropping record: %v", err)
		return
	}
	item := logfile.AppendItem(nil, cipher)
	if err := s.master.Push(item); err != nil {
		s.mu.Unlock()
		logctx.Errorf("sink: push to master buffer failed: %v", err)
		return
	}
	ratio := s.master.Ratio()
	s.mu.Unlock()

	if ratio > 0.8 && s.slaveFree.CompareAndSwap(true, false) {
		s.swapBuffers()
		s.executor.Post(s.runnerID, s.flushTask)
	}
}

// encodeOrPlaceholder implements spec.md §7's FormatError handling:
// oversized fields are replaced by a short diagnostic record rather than
// failing the hot path.
func encodeOrPlaceholder(rec record.Record) []byte {
	if len(rec.FileName) > 0xFFFF || len(rec.FuncName) > 0xFFFF || int64(len(rec.Message)) > 0xFFFFFFFF {
		return record.Placeholder("oversized field")
	}
	return record.Encode(rec)
}

// Flush blocks until the slave buffer (and, if the hot path raced ahead of
// it, one more swap of the master buffer) has been durably written.
func (s *Sink) Flush() {
	s.executor.Post(s.runnerID, s.flushTask)
	s.waitForRunnerIdle()

	s.mu.Lock()
	moreData := !s.master.Empty()
	s.mu.Unlock()

	if moreData && s.slaveFree.CompareAndSwap(true, false) {
		s.swapBuffers()
		s.executor.Post(s.runnerID, s.flushTask)
		s.waitForRunnerIdle()
	}
}

func (s *Sink) waitForRunnerIdle() {
	done := make(chan struct{})
	s.executor.Post(s.runnerID, func() { close(done) })
	<-done
}

// flushTask runs on the sink's dedicated runner and is therefore never
// invoked concurrently with itself or with a file roll or retention sweep.
func (s *Sink) flushTask() {
	if s.slaveFree.Load() {
		return
	}

	s.mu.Lock()
	slave := s.slave
	s.mu.Unlock()

	if slave.Empty() {
		s.slaveFree.Store(true)
		return
	}

	path, err := s.currentOutputPath(slave.Size())
	if err != nil {
		logctx.Errorf("sink: compute rolling file path failed: %v", err)
		return
	}

	chunk := logfile.AppendChunk(nil, s.ephemeralPub, slave.Data())
	if err := s.appendChunkWithRetry(path, chunk); err != nil {
		logctx.Errorf("sink: flush failed, will retry: %v", err)
		// slaveFree stays false: the slave buffer is still dirty, so a
		// swap must not clobber it. Re-arm the flush on a delay instead
		// of waiting for a caller to invoke Flush(), or the sink would
		// otherwise never write again once flushTask's own retries are
		// exhausted.
		s.executor.PostDelayed(s.runnerID, s.flushTask, flushRetryDelay)
		return
	}

	s.currentSize += int64(len(chunk))
	slave.Clear()
	s.slaveFree.Store(true)
}

func (s *Sink) appendChunkWithRetry(path string, chunk []byte) error {
	policy := retry.Backoff(50*time.Millisecond, 2*time.Second, 2.0, 3)
	var lastErr error
	for try := 0; ; try++ {
		lastErr = appendToFile(path, chunk)
		if lastErr == nil {
			return nil
		}
		if waitErr := retry.Wait(context.Background(), policy, try); waitErr != nil {
			return lastErr
		}
	}
}

func appendToFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.E(errors.IO, "open log file for append", err)
	}
	defer f.Close()

	preWriteSize, statErr := f.Seek(0, io.SeekEnd)
	if statErr != nil {
		return errors.E(errors.IO, "seek log file for append", statErr)
	}
	if _, err := f.Write(data); err != nil {
		// A failed write may still have flushed some prefix of the chunk
		// to disk ahead of a retry's full re-append; truncate back to
		// this chunk's start so the file is never left with a torn chunk
		// header in front of a later, successfully written one.
		if terr := f.Truncate(preWriteSize); terr != nil {
			logctx.Errorf("sink: failed to roll back torn chunk write: %v", terr)
		}
		return errors.E(errors.IO, "append chunk", err)
	}
	return nil
}

// currentOutputPath implements spec.md §4.9's file rolling rule. It is
// only ever called from the sink's strand.
func (s *Sink) currentOutputPath(payloadLen int) (string, error) {
	chunkLen := int64(logfile.ChunkHeaderSize + payloadLen)
	if s.currentPath == "" || s.currentSize+chunkLen > s.cfg.SingleFileSize {
		p, err := logfile.NextPath(s.cfg.Directory, s.cfg.FilePrefix, time.Now())
		if err != nil {
			return "", err
		}
		s.currentPath = p
		s.currentSize = 0
	}
	return s.currentPath, nil
}

// retentionSweep implements spec.md §4.9's retention rule: files are kept
// newest-first until the cumulative size budget is exceeded, then the
// remaining (older) files are removed. Removal failures are logged and
// non-fatal.
func (s *Sink) retentionSweep() {
	files, err := logfile.ListLogFiles(s.cfg.Directory)
	if err != nil {
		logctx.Errorf("sink: retention sweep failed to list files: %v", err)
		return
	}
	var total int64
	errs := multierror.New(len(files))
	for i, f := range files {
		total += f.Size
		// files[0] is always the newest file (logfile.ListLogFiles is
		// sorted newest-first) and is never removed, even alone over
		// budget: the sweep only trims the tail.
		if i > 0 && total > s.cfg.TotalFilesSize {
			if err := os.Remove(f.Path); err != nil {
				errs.Add(errors.E(errors.IO, "remove retained log file", err))
			}
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		logctx.Errorf("sink: retention sweep: %v", err)
	}
}

// Close flushes outstanding data, stops the retention sweep, and releases
// every resource the sink owns.
func (s *Sink) Close() (err error) {
	s.executor.CancelRepeated(s.retentionID)
	s.Flush()
	s.executor.Close()
	s.zstd.Close()
	errors.CleanUp(s.master.Close, &err)
	errors.CleanUp(s.slave.Close, &err)
	return err
}
