package service

import (
	"strings"
	"time"

	"github.com/specsflow-next/internal/repository"

	"gorm.io/gorm"
)

// FrameAvailability 镜架库存查询结果
type FrameAvailability struct {
	FrameRef  string `json:"frame_ref"`
	Available bool   `json:"available"`
	Quantity  int    `json:"quantity"`
}

// InventoryGateway 库存外部协作方，扣减与释放均按订单幂等
type InventoryGateway interface {
	CheckAvailability(frameRef string) (*FrameAvailability, error)
	Deduct(orderID uint, frameRef string) error
	Release(orderID uint) error
	WithTx(tx *gorm.DB) InventoryGateway
}

// StockInventoryGateway 基于镜架库存表的实现
type StockInventoryGateway struct {
	repo repository.InventoryRepository
	now  func() time.Time
}

// NewStockInventoryGateway 创建库存网关
func NewStockInventoryGateway(repo repository.InventoryRepository) *StockInventoryGateway {
	return &StockInventoryGateway{repo: repo, now: time.Now}
}

// WithTx 绑定事务
func (g *StockInventoryGateway) WithTx(tx *gorm.DB) InventoryGateway {
	if tx == nil {
		return g
	}
	return &StockInventoryGateway{repo: g.repo.WithTx(tx), now: g.now}
}

// CheckAvailability 查询镜架可用库存
func (g *StockInventoryGateway) CheckAvailability(frameRef string) (*FrameAvailability, error) {
	frameRef = strings.TrimSpace(frameRef)
	if frameRef == "" {
		return nil, ErrFrameNotFound
	}
	stock, err := g.repo.GetStock(frameRef)
	if err != nil {
		return nil, err
	}
	if stock == nil {
		return nil, ErrFrameNotFound
	}
	return &FrameAvailability{
		FrameRef:  stock.FrameRef,
		Available: stock.Quantity > 0,
		Quantity:  stock.Quantity,
	}, nil
}

// Deduct 为订单占用一件镜架，重复调用不会重复扣减；自备镜架直接跳过
func (g *StockInventoryGateway) Deduct(orderID uint, frameRef string) error {
	frameRef = strings.TrimSpace(frameRef)
	if frameRef == "" {
		return nil
	}
	existing, err := g.repo.GetReservation(orderID, frameRef)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	stock, err := g.repo.GetStock(frameRef)
	if err != nil {
		return err
	}
	if stock == nil {
		return ErrFrameNotFound
	}
	ok, err := g.repo.Reserve(orderID, frameRef, 1)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil
		}
		return err
	}
	if !ok {
		return ErrFrameOutOfStock
	}
	return nil
}

// Release 释放订单占用的镜架
func (g *StockInventoryGateway) Release(orderID uint) error {
	return g.repo.ReleaseByOrderID(orderID, g.now())
}
