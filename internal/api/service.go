package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/calebms/spanfill/internal/decoding"
	"github.com/calebms/spanfill/internal/encoding"
	"github.com/calebms/spanfill/internal/infill"
	"github.com/calebms/spanfill/internal/logger"
	"github.com/calebms/spanfill/internal/model"
	"github.com/calebms/spanfill/internal/scoring"
	"github.com/calebms/spanfill/internal/tokenizer"
)

// Service runs infill and scoring requests against a model. NewModel
// builds a replica per request so concurrent handlers never share decoder
// state.
type Service struct {
	Tok      *tokenizer.Tokenizer
	NewModel model.Factory

	MaxSeqLength int
	OutSeqLength int

	Log   logger.Logger
	clock func() time.Time
}

func NewService(tok *tokenizer.Tokenizer, factory model.Factory, maxSeqLength, outSeqLength int, log logger.Logger) *Service {
	if maxSeqLength == 0 {
		maxSeqLength = 512
	}
	if outSeqLength == 0 {
		outSeqLength = maxSeqLength
	}
	if log == nil {
		log = logger.Default()
	}
	return &Service{
		Tok:          tok,
		NewModel:     factory,
		MaxSeqLength: maxSeqLength,
		OutSeqLength: outSeqLength,
		Log:          log,
		clock:        time.Now,
	}
}

// Infill resolves every mask marker in the request's query.
func (s *Service) Infill(ctx context.Context, req *InfillRequest) (*InfillResponse, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, newInvalidRequest("query must not be empty")
	}
	if req.Strategy == "" {
		req.Strategy = decoding.StrategyGreedy
	}
	if req.NumBeams == 0 {
		req.NumBeams = 1
	}
	strat, err := decoding.New(decoding.Config{
		Strategy:          req.Strategy,
		NumBeams:          req.NumBeams,
		LengthPenalty:     req.LengthPenalty,
		NoRepeatNgramSize: req.NoRepeatNgramSize,
		MinTargetLength:   req.MinTgtLength,
		Temperature:       req.Temperature,
		TopK:              req.TopK,
		Seed:              req.Seed,
		EndTokens:         s.Tok.EndTokens(),
	})
	if err != nil {
		return nil, newInvalidRequest(err.Error())
	}
	seq, err := infill.ParseQuery(s.Tok, req.Query, req.UseTaskMask)
	if err != nil {
		return nil, newInvalidRequest(err.Error())
	}

	fwd, err := s.NewModel()
	if err != nil {
		return nil, fmt.Errorf("build model replica: %w", err)
	}
	maskKind := tokenizer.CmdMask
	if req.UseTaskMask {
		maskKind = tokenizer.CmdGMask
	}
	driver := &infill.Driver{
		Model:        fwd,
		Strategy:     strat,
		MaskID:       s.Tok.MustCommand(maskKind),
		SopID:        s.Tok.MustCommand(tokenizer.CmdSop),
		EndTokens:    s.Tok.EndTokens(),
		MaxSeqLength: s.MaxSeqLength,
		OutSeqLength: s.OutSeqLength,
		UseTaskMask:  req.UseTaskMask,
		Log:          s.Log,
	}
	outputs, err := driver.Fill(ctx, seq)
	if err != nil {
		if errors.Is(err, encoding.ErrSequenceTooLong) || errors.Is(err, encoding.ErrConfigConflict) {
			return nil, newInvalidRequest(err.Error())
		}
		return nil, err
	}

	texts := make([]string, len(outputs))
	for i, out := range outputs {
		texts[i] = s.Tok.Detokenize(out)
	}
	return &InfillResponse{
		ID:      "infill_" + uuid.NewString(),
		Object:  "infill",
		Created: s.now().Unix(),
		Query:   req.Query,
		Outputs: texts,
	}, nil
}

// Score ranks the request's choices as continuations of the query.
func (s *Service) Score(ctx context.Context, req *ScoreRequest) (*ScoreResponse, error) {
	if len(req.Choices) == 0 {
		return nil, newInvalidRequest("at least one choice is required")
	}
	text := s.Tok.Tokenize(req.Query)
	choices := make([][]int, len(req.Choices))
	single := true
	for i, raw := range req.Choices {
		choice := s.Tok.Tokenize(raw)
		if len(choice) == 0 {
			return nil, newInvalidRequest(fmt.Sprintf("choice %d is empty", i))
		}
		if len(choice) != 1 {
			single = false
		}
		choices[i] = choice
	}

	sample, err := encoding.BuildMultiChoiceSample(text, choices, encoding.MultiChoiceOptions{
		MaxLength:        s.MaxSeqLength,
		SingleToken:      single,
		UnifiedMultitask: req.UnifiedMultitask,
		MaskID:           s.Tok.MustCommand(tokenizer.CmdMask),
		SopID:            s.Tok.MustCommand(tokenizer.CmdSop),
	})
	if err != nil {
		if errors.Is(err, encoding.ErrSequenceTooLong) || errors.Is(err, encoding.ErrConfigConflict) {
			return nil, newInvalidRequest(err.Error())
		}
		return nil, err
	}
	batch, err := encoding.CollateChoices([]encoding.ChoiceSample{sample})
	if err != nil {
		return nil, err
	}

	fwd, err := s.NewModel()
	if err != nil {
		return nil, fmt.Errorf("build model replica: %w", err)
	}
	logits, err := fwd.Forward(ctx, batch.Tokens, batch.PositionIDs, batch.AttentionMask)
	if err != nil {
		return nil, err
	}
	scores, err := scoring.ConditionalLogProb(logits, batch)
	if err != nil {
		return nil, err
	}
	return &ScoreResponse{
		ID:      "score_" + uuid.NewString(),
		Object:  "score",
		Created: s.now().Unix(),
		Scores:  scores[0],
		Best:    scoring.ArgMax(scores[0]),
	}, nil
}

func (s *Service) now() time.Time {
	if s.clock != nil {
		return s.clock()
	}
	return time.Now()
}
