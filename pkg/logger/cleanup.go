package logger

import (
	"os"
	"path/filepath"
	"regexp"
	"time"
)

var fileDatePattern = regexp.MustCompile(`\d{8}`)

// Cleaner deletes log files older than the retention period. Age is taken
// from the YYYYMMDD stamp in the file name, not from file mtime, so copied
// or restored logs are still aged correctly.
type Cleaner struct {
	Dir           string
	RetentionDays int
	log           Logger
	now           func() time.Time
}

func NewCleaner(dir string, retentionDays int, log Logger) *Cleaner {
	if retentionDays <= 0 {
		retentionDays = 60
	}
	return &Cleaner{Dir: dir, RetentionDays: retentionDays, log: log, now: time.Now}
}

func (c *Cleaner) extractDate(filename string) (time.Time, bool) {
	match := fileDatePattern.FindString(filename)
	if match == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("20060102", match)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (c *Cleaner) expired(fileDate time.Time) bool {
	return c.now().Sub(fileDate) > time.Duration(c.RetentionDays)*24*time.Hour
}

// CleanOldLogs removes expired log files and returns how many were deleted.
func (c *Cleaner) CleanOldLogs() (int, error) {
	files, err := filepath.Glob(filepath.Join(c.Dir, "*.txt"))
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, path := range files {
		name := filepath.Base(path)
		fileDate, ok := c.extractDate(name)
		if !ok {
			if c.log != nil {
				c.log.Log("could not extract date from log file name: %s", name)
			}
			continue
		}
		if !c.expired(fileDate) {
			continue
		}
		if err := os.Remove(path); err != nil {
			if c.log != nil {
				c.log.Log("failed to delete expired log file %s: %v", name, err)
			}
			continue
		}
		deleted++
		if c.log != nil {
			c.log.Log("deleted expired log file %s (dated %s)", name, fileDate.Format("2006-01-02"))
		}
	}
	return deleted, nil
}
