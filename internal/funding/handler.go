package funding

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/fundme-labs/fundme/internal/fundme"
	"github.com/fundme-labs/fundme/internal/identity"
	"github.com/fundme-labs/fundme/internal/ledger"
	"github.com/fundme-labs/fundme/internal/middleware"
	"github.com/fundme-labs/fundme/internal/pricefeed"
)

// Handler exposes HTTP endpoints for contracts and price feeds.
type Handler struct {
	service *Service
}

// NewHandler constructs a funding handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type deployRequest struct {
	PriceFeed string `json:"price_feed"`
}

type valueRequest struct {
	Value string `json:"value"`
}

type contractResponse struct {
	ID          string `json:"id"`
	Owner       string `json:"owner"`
	PriceFeed   string `json:"price_feed"`
	MinimumUSD  string `json:"minimum_usd"`
	Balance     string `json:"balance_wei"`
	BalanceEth  string `json:"balance_ether"`
	FunderCount int    `json:"funder_count"`
}

type feedRequest struct {
	Ref      string `json:"ref"`
	Decimals int32  `json:"decimals"`
	Answer   string `json:"answer"`
}

type priceResponse struct {
	Ref       string    `json:"ref"`
	Answer    string    `json:"answer"`
	Decimals  int32     `json:"decimals"`
	Price     string    `json:"price"`
	Round     uint64    `json:"round"`
	UpdatedAt time.Time `json:"updated_at"`
}

func callerOf(c *fiber.Ctx) string {
	caller, _ := c.Locals(middleware.LocalCaller).(string)
	return caller
}

// Deploy creates a contract owned by the authenticated caller.
func (h *Handler) Deploy(c *fiber.Ctx) error {
	var req deployRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.PriceFeed == "" {
		return fiber.NewError(http.StatusBadRequest, "price_feed is required")
	}
	fm, err := h.service.Deploy(c.UserContext(), DeployInput{Owner: callerOf(c), PriceFeed: req.PriceFeed})
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(contractResponse{
		ID:         fm.ID(),
		Owner:      fm.Owner(),
		PriceFeed:  fm.PriceFeed(),
		MinimumUSD: fundme.FormatUSD(fm.MinimumUSD()),
		Balance:    "0",
		BalanceEth: "0",
	})
}

// Get returns a contract summary.
func (h *Handler) Get(c *fiber.Ctx) error {
	sum, err := h.service.Summarize(c.UserContext(), c.Params("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(contractResponse{
		ID:          sum.ID,
		Owner:       sum.Owner,
		PriceFeed:   sum.PriceFeed,
		MinimumUSD:  fundme.FormatUSD(sum.MinimumUSD),
		Balance:     sum.Balance.String(),
		BalanceEth:  fundme.FormatEther(sum.Balance),
		FunderCount: sum.FunderCount,
	})
}

// Fund records a contribution from the caller.
func (h *Handler) Fund(c *fiber.Ctx) error {
	var req valueRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	amount, err := fundme.ParseValue(req.Value)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	receipt, err := h.service.Fund(c.UserContext(), c.Params("id"), callerOf(c), amount)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"contract_id":  receipt.ContractID,
		"funder":       receipt.Funder,
		"amount":       receipt.Amount.String(),
		"total_funded": receipt.TotalFunded.String(),
		"usd_value":    fundme.FormatUSD(receipt.USDValue),
		"position":     receipt.Position,
	})
}

// Withdraw drains the contract to the owner.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	return h.withdraw(c, false)
}

// CheaperWithdraw drains the contract using the snapshot variant.
func (h *Handler) CheaperWithdraw(c *fiber.Ctx) error {
	return h.withdraw(c, true)
}

func (h *Handler) withdraw(c *fiber.Ctx, cheaper bool) error {
	res, err := h.service.Withdraw(c.UserContext(), c.Params("id"), callerOf(c), cheaper)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{
		"contract_id":     res.ContractID,
		"owner":           res.Owner,
		"amount":          res.Amount.String(),
		"amount_ether":    fundme.FormatEther(res.Amount),
		"funders_cleared": res.FundersCleared,
	})
}

// Funder returns the funder at the given index.
func (h *Handler) Funder(c *fiber.Ctx) error {
	index, err := strconv.Atoi(c.Params("index"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "index must be an integer")
	}
	funder, err := h.service.Funder(c.UserContext(), c.Params("id"), index)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{"index": index, "funder": funder})
}

// AmountFunded returns an address's cumulative contribution.
func (h *Handler) AmountFunded(c *fiber.Ctx) error {
	addr := identity.NormalizeAddress(c.Params("address"))
	amount, err := h.service.AmountFunded(c.UserContext(), c.Params("id"), addr)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{"address": addr, "amount": amount.String()})
}

// Quote prices a value in USD without changing state.
func (h *Handler) Quote(c *fiber.Ctx) error {
	amount, err := fundme.ParseValue(c.Query("value"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	q, err := h.service.Quote(c.UserContext(), c.Params("id"), amount)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{
		"amount":    q.Amount.String(),
		"usd_value": fundme.FormatUSD(q.USDValue),
		"price":     q.Price.Value().String(),
		"accepted":  q.Accepted,
	})
}

// CreateFeed registers a mock price feed.
func (h *Handler) CreateFeed(c *fiber.Ctx) error {
	var req feedRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.Ref == "" {
		return fiber.NewError(http.StatusBadRequest, "ref is required")
	}
	answer, err := decimal.NewFromString(req.Answer)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "answer must be an integer")
	}
	p, err := h.service.CreateFeed(c.UserContext(), req.Ref, req.Decimals, answer)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(toPriceResponse(req.Ref, p))
}

// GetFeed returns the latest reading of a feed.
func (h *Handler) GetFeed(c *fiber.Ctx) error {
	ref := c.Params("ref")
	p, err := h.service.Feed(c.UserContext(), ref)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(toPriceResponse(ref, p))
}

// UpdateFeedAnswer sets a new answer on a feed.
func (h *Handler) UpdateFeedAnswer(c *fiber.Ctx) error {
	var req feedRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	answer, err := decimal.NewFromString(req.Answer)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "answer must be an integer")
	}
	ref := c.Params("ref")
	p, err := h.service.UpdateFeedAnswer(c.UserContext(), ref, answer)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(toPriceResponse(ref, p))
}

func toPriceResponse(ref string, p pricefeed.Price) priceResponse {
	return priceResponse{
		Ref:       ref,
		Answer:    p.Rate.String(),
		Decimals:  p.Decimals,
		Price:     p.Value().String(),
		Round:     p.Round,
		UpdatedAt: p.UpdatedAt,
	}
}

func mapError(err error) error {
	switch {
	case errors.Is(err, fundme.ErrInsufficientContribution),
		errors.Is(err, fundme.ErrInvalidAmount),
		errors.Is(err, fundme.ErrInvalidCaller),
		errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, pricefeed.ErrInvalidAnswer):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, fundme.ErrNotOwner):
		return fiber.NewError(http.StatusForbidden, err.Error())
	case errors.Is(err, fundme.ErrIndexOutOfRange),
		errors.Is(err, ledger.ErrContractNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, fundme.ErrTransferFailed),
		errors.Is(err, pricefeed.ErrFeedExists),
		errors.Is(err, ledger.ErrContractExists):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, fundme.ErrPriceFeedUnavailable):
		return fiber.NewError(http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, pricefeed.ErrFeedNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
