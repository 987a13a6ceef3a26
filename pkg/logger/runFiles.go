package logger

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// RunFiles holds the three per-run log files: the general flow log, the
// crash log, and the updated-products log. File names carry the run date
// and a short hash so parallel runs on the same day do not clobber each
// other.
type RunFiles struct {
	General *os.File
	Crash   *os.File
	Updates *os.File
}

func runHash(t time.Time) string {
	sum := md5.Sum([]byte(strconv.FormatInt(t.UnixNano(), 10)))
	return hex.EncodeToString(sum[:])[:4]
}

func NewRunFiles(dir string) (*RunFiles, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	now := time.Now()
	stamp := now.Format("20060102")
	hash := runHash(now)

	open := func(prefix string) (*os.File, error) {
		name := fmt.Sprintf("%s_%s_%s.txt", prefix, stamp, hash)
		return os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	}

	rf := &RunFiles{}
	var err error
	if rf.General, err = open("LOGS"); err != nil {
		return nil, err
	}
	if rf.Crash, err = open("CRASH_LOGS"); err != nil {
		rf.Close()
		return nil, err
	}
	if rf.Updates, err = open("UPDATED_PRODUCTS_LOGS"); err != nil {
		rf.Close()
		return nil, err
	}
	return rf, nil
}

func (rf *RunFiles) Close() {
	for _, f := range []*os.File{rf.General, rf.Crash, rf.Updates} {
		if f != nil {
			f.Close()
		}
	}
}

// CurrentDayFiles returns the log files in dir whose name carries today's
// date stamp. Used by the run report to attach logs.
func CurrentDayFiles(dir string) []string {
	stamp := time.Now().Format("20060102")
	matches, err := filepath.Glob(filepath.Join(dir, "*"+stamp+"*.txt"))
	if err != nil {
		return nil
	}
	return matches
}
