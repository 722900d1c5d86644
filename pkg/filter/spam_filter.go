package filter

import (
	"context"
	"crypto/sha1"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zpam/spamd/pkg/classifier"
	"github.com/zpam/spamd/pkg/config"
	"github.com/zpam/spamd/pkg/message"
)

// FilterResults contains the results of a directory batch run.
type FilterResults struct {
	Total int
	Spam  int
	Ham   int
}

// SpamFilter is a directory batch front-end over a classifier.Service.
// It walks a directory of message files, classifies each one through
// the rule engine and Bayesian classifier, and moves ham/spam into
// separate output directories with a worker-pool of goroutines. The
// walking/worker-pool/file-moving shape is the teacher's; the scoring
// underneath it is the shared C3/C4 engine instead of a bespoke
// weighted-feature calculation.
type SpamFilter struct {
	svc       *classifier.Service
	config    *config.Config
	threshold float64
}

// NewSpamFilter creates a spam filter with default configuration.
func NewSpamFilter() (*SpamFilter, error) {
	return NewSpamFilterWithConfig(config.DefaultConfig())
}

// NewSpamFilterWithConfig builds a SpamFilter around cfg's rule engine
// and Bayesian classifier.
func NewSpamFilterWithConfig(cfg *config.Config) (*SpamFilter, error) {
	svc, err := classifier.Build(cfg, classifier.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to build classifier: %v", err)
	}
	return &SpamFilter{
		svc:       svc,
		config:    cfg,
		threshold: float64(cfg.Detection.SpamThreshold) * 1.25,
	}, nil
}

// LoadConfigFromPath loads configuration from file path or returns default.
func LoadConfigFromPath(configPath string) (*config.Config, error) {
	if configPath == "" {
		return config.DefaultConfig(), nil
	}
	return config.LoadConfig(configPath)
}

// Close releases the filter's Bayesian token store, if any.
func (sf *SpamFilter) Close() error {
	if sf.svc.Bayes == nil {
		return nil
	}
	return sf.svc.Bayes.Close()
}

func (sf *SpamFilter) classifyFile(path string) (*message.Message, float64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read message: %v", err)
	}
	msg, err := message.Parse(raw)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse message: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	status, err := sf.svc.Classify(ctx, msg)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to classify message: %v", err)
	}
	return msg, status.Score, nil
}

// TestEmail classifies a single message file, returning its score on
// the familiar 1-5 scale.
func (sf *SpamFilter) TestEmail(path string) (int, error) {
	_, score, err := sf.classifyFile(path)
	if err != nil {
		return 0, err
	}
	return classifier.NormalizeScore(score, sf.threshold), nil
}

// ProcessEmails processes a directory of messages and files spam
// into spamPath, ham into outputPath.
func (sf *SpamFilter) ProcessEmails(inputPath, outputPath, spamPath string, threshold int) (*FilterResults, error) {
	results := &FilterResults{}

	if outputPath != "" {
		if err := os.MkdirAll(outputPath, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %v", err)
		}
	}
	if spamPath != "" {
		if err := os.MkdirAll(spamPath, 0755); err != nil {
			return nil, fmt.Errorf("failed to create spam directory: %v", err)
		}
	}

	var emailFiles []string
	err := filepath.WalkDir(inputPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !sf.isEmailFile(path) {
			return nil
		}
		emailFiles = append(emailFiles, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(emailFiles) == 0 {
		return results, nil
	}

	maxConcurrent := 20
	if sf.config != nil && sf.config.Performance.MaxConcurrentEmails > 0 {
		maxConcurrent = sf.config.Performance.MaxConcurrentEmails
	}

	return sf.processEmailsParallel(emailFiles, outputPath, spamPath, threshold, maxConcurrent)
}

// processEmailsParallel processes emails using parallel worker goroutines.
func (sf *SpamFilter) processEmailsParallel(emailFiles []string, outputPath, spamPath string, threshold, maxConcurrent int) (*FilterResults, error) {
	var totalProcessed, spamDetected, hamDetected int32
	var processingErrors int32

	type EmailJob struct {
		FilePath string
		Index    int
	}
	type EmailResult struct {
		FilePath    string
		Score       int
		IsSpam      bool
		Error       error
		ProcessTime time.Duration
	}

	jobChan := make(chan EmailJob, len(emailFiles))
	resultChan := make(chan EmailResult, len(emailFiles))

	var workerWG sync.WaitGroup
	for i := 0; i < maxConcurrent; i++ {
		workerWG.Add(1)
		go func(workerID int) {
			defer workerWG.Done()

			for job := range jobChan {
				startTime := time.Now()
				score, err := sf.TestEmail(job.FilePath)
				processingTime := time.Since(startTime)

				resultChan <- EmailResult{
					FilePath:    job.FilePath,
					Score:       score,
					IsSpam:      score >= threshold,
					Error:       err,
					ProcessTime: processingTime,
				}

				atomic.AddInt32(&totalProcessed, 1)
				if err != nil {
					atomic.AddInt32(&processingErrors, 1)
				} else if score >= threshold {
					atomic.AddInt32(&spamDetected, 1)
				} else {
					atomic.AddInt32(&hamDetected, 1)
				}
			}
		}(i)
	}

	go func() {
		defer close(jobChan)
		for i, filePath := range emailFiles {
			jobChan <- EmailJob{FilePath: filePath, Index: i}
		}
	}()

	go func() {
		defer close(resultChan)
		workerWG.Wait()
	}()

	var moveWG sync.WaitGroup
	var moveErrors int32

	for result := range resultChan {
		if result.Error != nil {
			fmt.Printf("Warning: Failed to process %s: %v\n", result.FilePath, result.Error)
			continue
		}

		moveWG.Add(1)
		go func(res EmailResult) {
			defer moveWG.Done()

			var destPath string
			if res.IsSpam && spamPath != "" {
				destPath = filepath.Join(spamPath, filepath.Base(res.FilePath))
			} else if !res.IsSpam && outputPath != "" {
				destPath = filepath.Join(outputPath, filepath.Base(res.FilePath))
			}

			if destPath != "" {
				if err := sf.moveFile(res.FilePath, destPath); err != nil {
					fmt.Printf("Warning: Failed to move %s: %v\n", res.FilePath, err)
					atomic.AddInt32(&moveErrors, 1)
				}
			}
		}(result)
	}
	moveWG.Wait()

	finalResults := &FilterResults{
		Total: int(atomic.LoadInt32(&totalProcessed)),
		Spam:  int(atomic.LoadInt32(&spamDetected)),
		Ham:   int(atomic.LoadInt32(&hamDetected)),
	}

	if errors := atomic.LoadInt32(&processingErrors); errors > 0 {
		fmt.Printf("Warning: %d emails failed to process\n", errors)
	}
	if moveErr := atomic.LoadInt32(&moveErrors); moveErr > 0 {
		fmt.Printf("Warning: %d emails failed to move\n", moveErr)
	}

	return finalResults, nil
}

// isEmailFile checks if a file is likely a message file.
func (sf *SpamFilter) isEmailFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	emailExts := []string{".eml", ".msg", ".txt", ".email"}
	for _, emailExt := range emailExts {
		if ext == emailExt {
			return true
		}
	}
	return ext == ""
}

// moveFile moves a file from source to destination.
func (sf *SpamFilter) moveFile(src, dst string) error {
	return os.Rename(src, dst)
}

// TrainSpam trains the attached Bayesian classifier on subject/body as spam.
func (sf *SpamFilter) TrainSpam(subject, body string) error {
	return sf.train(subject, body, true)
}

// TrainHam trains the attached Bayesian classifier on subject/body as ham.
func (sf *SpamFilter) TrainHam(subject, body string) error {
	return sf.train(subject, body, false)
}

func (sf *SpamFilter) train(subject, body string, isSpam bool) error {
	if sf.svc.Bayes == nil {
		return fmt.Errorf("learning is not enabled")
	}

	text := subject + "\n" + body
	tokens := classifier.TokensFromText(subject, body)
	sum := sha1.Sum([]byte(text))
	messageID := fmt.Sprintf("%x", sum)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return sf.svc.Bayes.Learn(ctx, messageID, tokens, isSpam)
}
