package credit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/emprestedigital/creditbot/internal/facta"
)

// installmentFloor is the minimum repasse value the upstream accepts in a
// simulation; once a valid installment is followed by one under the floor,
// everything after it is zeroed.
const installmentFloor = 100.0

// EligibilityClient is the slice of the Facta client the service needs.
type EligibilityClient interface {
	CheckBalance(ctx context.Context, cpf string) facta.BalanceResponse
	Simulate(ctx context.Context, req facta.SimulationRequest) (facta.SimulationResponse, error)
}

// rateTable is one simulation table offered to customers.
type rateTable struct {
	Code int
	Rate float64
	Name string
}

// bestRateTable picks the table for a given total balance. A single table
// is offered today; the balance parameter keeps the call sites honest for
// when tiered tables return.
func bestRateTable(balance float64) rateTable {
	return rateTable{Code: 62170, Rate: 1.80, Name: "Gold Preference"}
}

// Service runs the full eligibility flow against Facta and produces a
// canonical Offer: check balance, classify, simulate when possible, and
// attach the message template the engine should send.
type Service struct {
	client EligibilityClient
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a Service. If logger is nil, slog.Default() is used.
func NewService(client EligibilityClient, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		client: client,
		logger: logger,
		now:    time.Now,
	}
}

// BestOffer checks eligibility for cpf and returns the standardized Offer.
// It never returns an error: upstream failures become an internal
// unknown-return Offer so the conversation can still move to a human.
func (s *Service) BestOffer(ctx context.Context, cpf string) Offer {
	resp := s.client.CheckBalance(ctx, cpf)
	res := facta.Interpret(resp)

	s.logger.InfoContext(ctx, "eligibility_checked",
		slog.String("outcome", string(res.Outcome)),
	)

	switch res.Outcome {
	case facta.OutcomeSuccess:
		return s.simulate(ctx, cpf, resp, res.Balance)
	case facta.OutcomeNeedsAuthorization:
		return Offer{Outcome: res.Outcome, MessageKey: "needs_authorization"}
	case facta.OutcomeNeedsEnrollment:
		return Offer{Outcome: res.Outcome, MessageKey: "needs_enrollment"}
	case facta.OutcomeDataMismatch:
		return Offer{Outcome: res.Outcome, MessageKey: "data_mismatch"}
	case facta.OutcomeBirthdayWindow:
		return Offer{
			Outcome:    res.Outcome,
			MessageKey: "birthday_window",
			Variables:  map[string]string{"data": SecondBusinessDayOfNextMonth(s.now())},
		}
	case facta.OutcomeBalanceNotFound:
		return Offer{Outcome: res.Outcome, MessageKey: "balance_not_found"}
	case facta.OutcomeNoBalance:
		return Offer{Outcome: res.Outcome, MessageKey: "no_balance"}
	case facta.OutcomeThrottled, facta.OutcomeSystemError:
		return s.unknownOffer(res.Outcome, res.Message)
	default:
		return s.unknownOffer(facta.OutcomeSystemError, fmt.Sprintf("unhandled outcome %s", res.Outcome))
	}
}

// simulate runs the /fgts/calculo step for a successful balance check.
func (s *Service) simulate(ctx context.Context, cpf string, resp facta.BalanceResponse, balance float64) Offer {
	table := bestRateTable(balance)

	s.logger.InfoContext(ctx, "simulation_start",
		slog.String("table", table.Name),
		slog.Int("table_code", table.Code),
	)

	sim, err := s.client.Simulate(ctx, facta.SimulationRequest{
		CPF:          cpf,
		Rate:         table.Rate,
		Table:        table.Code,
		Installments: organizeInstallments(resp.Payload),
	})
	if err != nil {
		return s.unknownOffer(facta.OutcomeSystemError, err.Error())
	}

	if !sim.Approved() {
		return Offer{
			Outcome:    facta.OutcomeNoBalance,
			MessageKey: "no_balance",
		}
	}

	net := facta.ParseAmount(sim.NetAmount)
	return Offer{
		Outcome:    facta.OutcomeSuccess,
		MessageKey: "balance_available",
		NetAmount:  net,
		Variables: map[string]string{
			"valor": facta.FormatBRL(net),
			"banco": "Facta",
		},
	}
}

// unknownOffer builds the internal-only note used whenever the upstream
// outcome needs manual follow-up instead of a scripted reply.
func (s *Service) unknownOffer(outcome facta.Outcome, detail string) Offer {
	return Offer{
		Outcome:    outcome,
		MessageKey: "unknown_return",
		Internal:   true,
		Variables:  map[string]string{"erro": detail},
	}
}

// organizeInstallments extracts the dataRepasse_N/valor_N pairs from a
// balance payload into the shape /fgts/calculo expects. The upstream
// rejects simulations where an installment above the floor is followed by
// one below it, so everything after such a drop is zeroed.
func organizeInstallments(payload map[string]any) []map[string]any {
	var installments []map[string]any
	foundValid := false
	zeroRest := false

	for i := 1; i <= 5; i++ {
		dateKey := fmt.Sprintf("dataRepasse_%d", i)
		valueKey := fmt.Sprintf("valor_%d", i)

		date, ok := payload[dateKey].(string)
		if !ok || date == "" {
			break
		}

		value := facta.ParseAmount(payload[valueKey])

		if !foundValid {
			if value >= installmentFloor {
				foundValid = true
			}
		} else if value < installmentFloor {
			zeroRest = true
		}

		if zeroRest && foundValid {
			value = 0
		}

		installments = append(installments, map[string]any{
			dateKey:  date,
			valueKey: value,
		})
	}

	return installments
}
