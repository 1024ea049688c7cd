package service

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang-stock-trader/internal/entity"
	"golang-stock-trader/internal/trader/config"
	"golang-stock-trader/internal/trader/dto"
	"golang-stock-trader/internal/trader/repository"
	"golang-stock-trader/pkg/common"
	"golang-stock-trader/pkg/logger"
	"golang-stock-trader/pkg/telegram"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	goRedis "github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
)

// NewsIngestionService pulls the configured feed, deduplicates items, maps
// them to tickers, scores them, and enqueues the resulting signals for
// execution.
type NewsIngestionService interface {
	ProcessFeed(ctx context.Context)
	IngestItem(ctx context.Context, news *entity.NewsEvent) (*entity.Signal, error)
}

type newsIngestionService struct {
	cfg         *config.Config
	redisClient *goRedis.Client
	newsRepo    repository.NewsRepository
	tickerRepo  repository.EventTickerRepository
	signalRepo  repository.SignalRepository
	registry    repository.ParameterRegistryRepository
	mapper      *TickerMapper
	notifier    telegram.Notifier
	logger      *logger.Logger
	feedParser  *gofeed.Parser
}

// NewNewsIngestionService creates a new NewsIngestionService.
func NewNewsIngestionService(
	cfg *config.Config,
	redisClient *goRedis.Client,
	newsRepo repository.NewsRepository,
	tickerRepo repository.EventTickerRepository,
	signalRepo repository.SignalRepository,
	registry repository.ParameterRegistryRepository,
	mapper *TickerMapper,
	notifier telegram.Notifier,
	log *logger.Logger,
) NewsIngestionService {
	return &newsIngestionService{
		cfg:         cfg,
		redisClient: redisClient,
		newsRepo:    newsRepo,
		tickerRepo:  tickerRepo,
		signalRepo:  signalRepo,
		registry:    registry,
		mapper:      mapper,
		notifier:    notifier,
		logger:      log,
		feedParser:  gofeed.NewParser(),
	}
}

// BuildRawHash derives the dedupe hash for a news item.
func BuildRawHash(source, url, title string) string {
	sum := sha256.Sum256([]byte(source + "|" + url + "|" + title))
	return fmt.Sprintf("%x", sum)
}

// stripHTML extracts plain text from feed HTML content.
func stripHTML(content string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return content
	}
	return strings.TrimSpace(doc.Text())
}

// ProcessFeed fetches the configured RSS feed and ingests each item.
func (s *newsIngestionService) ProcessFeed(ctx context.Context) {
	if s.cfg.Ingestion.FeedURL == "" {
		return
	}

	feed, err := s.feedParser.ParseURLWithContext(s.cfg.Ingestion.FeedURL, ctx)
	if err != nil {
		s.logger.Error("Failed to fetch news feed", logger.ErrorField(err), logger.Field("feed_url", s.cfg.Ingestion.FeedURL))
		return
	}

	for _, item := range feed.Items {
		publishedAt := time.Now()
		if item.PublishedParsed != nil {
			publishedAt = *item.PublishedParsed
		}

		news := &entity.NewsEvent{
			Source:      s.cfg.Ingestion.Source,
			Tier:        s.cfg.Ingestion.SourceTier,
			PublishedAt: publishedAt,
			Title:       item.Title,
			Body:        stripHTML(item.Description),
			URL:         item.Link,
			RawHash:     BuildRawHash(s.cfg.Ingestion.Source, item.Link, item.Title),
			Topics:      item.Categories,
		}

		if _, err := s.IngestItem(ctx, news); err != nil {
			s.logger.Error("Failed to ingest news item", logger.ErrorField(err), logger.Field("url", item.Link))
		}
	}
}

// IngestItem persists the news item, resolves its ticker, scores it, and
// enqueues the signal. Returns (nil, nil) for skip cases: duplicates and
// unmappable or low-confidence items.
func (s *newsIngestionService) IngestItem(ctx context.Context, news *entity.NewsEvent) (*entity.Signal, error) {
	created, err := s.newsRepo.CreateIfNew(ctx, news)
	if err != nil {
		return nil, err
	}
	if !created {
		s.logger.Info("Duplicate news skipped", logger.Field("raw_hash", news.RawHash))
		s.notify(telegram.FormatDuplicateNews())
		return nil, nil
	}

	params, err := LoadTradingParams(ctx, s.registry)
	if err != nil {
		return nil, err
	}

	mapping := s.mapper.Map(news.Title + " " + news.Body)
	if mapping == nil {
		s.logger.Info("No ticker mapping for news", logger.Field("news_id", news.ID))
		return nil, nil
	}
	if mapping.Confidence < params.MinMapConfidence {
		s.logger.Info("Ticker mapping below confidence threshold",
			logger.Field("news_id", news.ID),
			logger.Field("ticker", mapping.Ticker),
			logger.Field("confidence", mapping.Confidence))
		return nil, nil
	}

	eventTicker := &entity.EventTicker{
		NewsID:        news.ID,
		Ticker:        mapping.Ticker,
		CompanyName:   mapping.CompanyName,
		MapConfidence: mapping.Confidence,
		MappingMethod: mapping.MappingMethod,
	}
	if err := s.tickerRepo.Create(ctx, eventTicker); err != nil {
		return nil, err
	}

	scoreInput := componentInputs(news)
	rawScore, totalScore := ComputeScores(scoreInput, params.ScoreWeights)

	decision := entity.DecisionIgnore
	if totalScore >= params.BuyThreshold {
		decision = entity.DecisionBuy
	} else if totalScore >= params.BuyThreshold/2 {
		decision = entity.DecisionHold
	}

	components, err := json.Marshal(scoreInput)
	if err != nil {
		return nil, err
	}

	signal := &entity.Signal{
		NewsID:        news.ID,
		EventTickerID: eventTicker.ID,
		Ticker:        mapping.Ticker,
		RawScore:      rawScore,
		TotalScore:    totalScore,
		Components:    datatypes.JSON(components),
		PricedInFlag:  entity.PricedInLow,
		Decision:      decision,
	}
	if err := s.signalRepo.Create(ctx, signal); err != nil {
		return nil, err
	}

	if err := s.enqueue(ctx, signal.ID); err != nil {
		return nil, err
	}

	s.logger.Info("Signal created",
		logger.Field("signal_id", signal.ID),
		logger.Field("ticker", signal.Ticker),
		logger.Field("total_score", signal.TotalScore),
		logger.Field("decision", signal.Decision))
	return signal, nil
}

// componentInputs derives baseline component scores from the news metadata.
// Market reaction and liquidity stay neutral until a market-data feed is
// wired in.
func componentInputs(news *entity.NewsEvent) ScoreInput {
	inp := ScoreInput{
		Novelty:        90,
		MarketReaction: 50,
		Liquidity:      50,
		RiskPenalty:    10,
	}
	switch news.Tier {
	case 1:
		inp.Impact = 85
		inp.SourceReliability = 90
	case 2:
		inp.Impact = 75
		inp.SourceReliability = 70
	default:
		inp.Impact = 60
		inp.SourceReliability = 50
	}
	return inp
}

func (s *newsIngestionService) enqueue(ctx context.Context, signalID uint) error {
	payload, err := json.Marshal(dto.StreamDataSignalExecution{SignalID: signalID})
	if err != nil {
		return err
	}
	return s.redisClient.XAdd(ctx, &goRedis.XAddArgs{
		Stream: common.RedisStreamSignalExecution,
		Values: map[string]interface{}{"payload": payload},
	}).Err()
}

func (s *newsIngestionService) notify(text string) {
	if err := s.notifier.SendMessage(text); err != nil {
		s.logger.Warn("Failed to send notification", logger.ErrorField(err))
	}
}
