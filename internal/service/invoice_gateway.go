package service

import (
	"strings"
	"time"

	"github.com/specsflow-next/internal/models"
	"github.com/specsflow-next/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InvoiceGateway 开票外部协作方，按订单幂等
type InvoiceGateway interface {
	Issue(order *models.SpecsOrder) (*models.Invoice, error)
	WithTx(tx *gorm.DB) InvoiceGateway
}

// LedgerInvoiceGateway 写入本地发票表的实现
type LedgerInvoiceGateway struct {
	repo repository.InvoiceRepository
	now  func() time.Time
}

// NewLedgerInvoiceGateway 创建开票网关
func NewLedgerInvoiceGateway(repo repository.InvoiceRepository) *LedgerInvoiceGateway {
	return &LedgerInvoiceGateway{repo: repo, now: time.Now}
}

// WithTx 绑定事务
func (g *LedgerInvoiceGateway) WithTx(tx *gorm.DB) InvoiceGateway {
	if tx == nil {
		return g
	}
	return &LedgerInvoiceGateway{repo: g.repo.WithTx(tx), now: g.now}
}

// Issue 为订单开具发票，已开具时返回原发票
func (g *LedgerInvoiceGateway) Issue(order *models.SpecsOrder) (*models.Invoice, error) {
	if order == nil || order.ID == 0 {
		return nil, ErrOrderNotFound
	}
	existing, err := g.repo.GetByOrderID(order.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	invoice := &models.Invoice{
		InvoiceNo:    "INV-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:16]),
		SpecsOrderID: order.ID,
		PatientID:    order.PatientID,
		Amount:       order.TotalAmount,
		Tax:          order.Tax,
		IssuedAt:     g.now(),
	}
	if err := g.repo.Create(invoice); err != nil {
		if isDuplicateKeyError(err) {
			return g.repo.GetByOrderID(order.ID)
		}
		return nil, err
	}
	return invoice, nil
}
