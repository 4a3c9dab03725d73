// qfetch pulls question documents from the upstream question bank and loads
// them into the shared questions_master table. It is deliberately dumb:
// fixed batch sizes, fixed sleeps, at most two requests in flight.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/prepsync/practice-sync/internal/cloudstore"
	"github.com/prepsync/practice-sync/internal/db"
)

const (
	maxConcurrentRequests = 2
	batchSize             = 50
	batchDelay            = 3 * time.Second
	domainDelay           = 500 * time.Millisecond
)

type fetcher struct {
	client      *http.Client
	idsURL      string
	questionURL string
	store       *cloudstore.Store
	log         *logrus.Logger
	now         func() time.Time
}

func main() {
	_ = godotenv.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	var (
		domainsFlag = flag.String("domains", "INI,CAS,EOI,SEC,H,P,Q,S", "comma-separated domains to pull")
		idsURL      = flag.String("ids-url", envOr("QBANK_IDS_URL", ""), "endpoint returning question id lists")
		questionURL = flag.String("question-url", envOr("QBANK_QUESTION_URL", ""), "endpoint returning one question document")
	)
	flag.Parse()
	if *idsURL == "" || *questionURL == "" {
		log.Fatal("ids-url and question-url are required")
	}

	ctx := context.Background()
	remoteDB, err := db.OpenRemote(ctx, db.Driver(envOr("REMOTE_DRIVER", "sqlite")), os.Getenv("REMOTE_DSN"))
	if err != nil {
		log.WithError(err).Fatal("open remote db")
	}

	f := &fetcher{
		client:      &http.Client{Timeout: 30 * time.Second},
		idsURL:      *idsURL,
		questionURL: *questionURL,
		store:       cloudstore.New(remoteDB),
		log:         log,
		now:         time.Now,
	}

	for _, domain := range strings.Split(*domainsFlag, ",") {
		domain = strings.TrimSpace(domain)
		if domain == "" {
			continue
		}
		f.processDomain(ctx, domain)
		time.Sleep(domainDelay)
	}
	log.Info("all domains processed")
}

func (f *fetcher) processDomain(ctx context.Context, domain string) {
	log := f.log.WithField("domain", domain)
	ids, err := f.fetchQuestionIDs(ctx, domain)
	if err != nil {
		log.WithError(err).Error("fetch question ids")
		return
	}
	log.WithField("count", len(ids)).Info("fetched question ids")

	for i := 0; i < len(ids); i += batchSize {
		end := i + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		f.processBatch(ctx, domain, ids[i:end])
		log.WithField("batch", i/batchSize+1).Info("processed batch")

		if end < len(ids) {
			time.Sleep(batchDelay)
		}
	}
	log.Info("finished domain")
}

func (f *fetcher) processBatch(ctx context.Context, domain string, ids []string) {
	sem := make(chan struct{}, maxConcurrentRequests)
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		sem <- struct{}{}
		go func(id string) {
			defer wg.Done()
			defer func() { <-sem }()
			q, err := f.fetchQuestion(ctx, id, domain)
			if err != nil {
				f.log.WithError(err).WithField("id", id).Error("fetch question")
				return
			}
			if err := f.insertOrUpdate(ctx, q); err != nil {
				f.log.WithError(err).WithField("id", id).Error("store question")
			}
		}(id)
	}
	wg.Wait()
}

func (f *fetcher) fetchQuestionIDs(ctx context.Context, domain string) ([]string, error) {
	body := map[string]any{
		"domain":      domain,
		"asmtEventId": envOr("DEFAULT_ASMT_EVENT_ID", "100"),
		"test":        envOr("DEFAULT_TEST_ID", "1"),
	}
	var list []struct {
		ExternalID string `json:"external_id"`
	}
	if err := f.postJSON(ctx, f.idsURL, body, &list); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(list))
	for _, e := range list {
		if e.ExternalID != "" {
			ids = append(ids, e.ExternalID)
		}
	}
	return ids, nil
}

func (f *fetcher) fetchQuestion(ctx context.Context, id, domain string) (cloudstore.QuestionMaster, error) {
	var doc map[string]any
	if err := f.postJSON(ctx, f.questionURL, map[string]any{"external_id": id}, &doc); err != nil {
		return cloudstore.QuestionMaster{}, err
	}

	externalID, _ := doc["external_id"].(string)
	if externalID == "" {
		externalID = id
	}
	docDomain, _ := doc["domain"].(string)
	if docDomain == "" {
		docDomain = domain
	}
	qType, _ := doc["type"].(string)
	if qType == "" {
		qType = "mcq"
	}
	var difficulty *int
	if v, ok := doc["difficulty_level"].(float64); ok {
		d := int(v)
		difficulty = &d
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return cloudstore.QuestionMaster{}, err
	}
	now := f.now().UnixMilli()
	return cloudstore.QuestionMaster{
		ExternalID:      externalID,
		QuestionData:    string(data),
		Domain:          docDomain,
		Type:            qType,
		DifficultyLevel: difficulty,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// insertOrUpdate skips questions that are already complete and backfills
// rows missing domain or difficulty.
func (f *fetcher) insertOrUpdate(ctx context.Context, q cloudstore.QuestionMaster) error {
	existing, ok, err := f.store.MasterByID(ctx, q.ExternalID)
	if err != nil {
		return err
	}
	if !ok {
		return f.store.InsertMasters(ctx, []cloudstore.QuestionMaster{q})
	}
	if existing.Domain != "" && existing.DifficultyLevel != nil {
		f.log.WithField("id", q.ExternalID).Debug("question already complete, skipping")
		return nil
	}
	return f.store.UpdateMaster(ctx, q)
}

func (f *fetcher) postJSON(ctx context.Context, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
