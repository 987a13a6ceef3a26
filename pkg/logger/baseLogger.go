package logger

import (
	"fmt"
	"io"
	"log"
	"sync"
	"time"
)

type BaseLogger struct {
	mu     sync.Mutex
	prefix string
	writer io.Writer
	now    func() time.Time
}

func NewLogger(writer io.Writer, prefix string) *BaseLogger {
	return &BaseLogger{
		writer: writer,
		prefix: prefix,
		now:    time.Now,
	}
}

func (l *BaseLogger) Log(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	message := fmt.Sprintf(l.prefix+" "+format, v...)
	if l.writer != nil {
		// timestamped in the file, mirrored to the console
		fmt.Fprintf(l.writer, "%s %s\n", l.now().Format("2006-01-02 15:04:05"), message)
	}
	log.Print(message)
}

func (l *BaseLogger) WithPrefix(extraPrefix string) *BaseLogger {
	return &BaseLogger{
		writer: l.writer,
		prefix: l.prefix + " " + extraPrefix,
		now:    l.now,
	}
}

func (l *BaseLogger) SetPrefix(prefix string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prefix = prefix
}

func (l *BaseLogger) SetWriter(writer io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writer = writer
}
