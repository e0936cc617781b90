package service

import (
	"context"
	"errors"

	"signage-server/internal/model"
	"signage-server/internal/repository"
	"signage-server/pkg/util"
)

// ErrPresentationNotFound 演示文稿不存在或已停用
var ErrPresentationNotFound = errors.New("演示文稿不存在")

// PresentationService 演示文稿查询
// 演示文稿由外部维护，这里只负责按设备解析
type PresentationService struct {
	presentationRepo *repository.PresentationRepository
	deviceRepo       *repository.DeviceRepository
}

// NewPresentationService 创建 PresentationService 实例
func NewPresentationService(presentationRepo *repository.PresentationRepository, deviceRepo *repository.DeviceRepository) *PresentationService {
	return &PresentationService{
		presentationRepo: presentationRepo,
		deviceRepo:       deviceRepo,
	}
}

// Assigned 获取设备被指派的演示文稿
// 未指派或演示文稿已停用时返回 nil
func (s *PresentationService) Assigned(ctx context.Context, deviceID string) (*model.Presentation, error) {
	deviceID, ok := util.NormalizeDeviceID(deviceID)
	if !ok {
		return nil, ErrInvalidDeviceID
	}
	device, err := s.deviceRepo.GetByDeviceID(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, ErrDeviceNotFound
	}
	if device.AssignedPresentationID == nil {
		return nil, nil
	}
	return s.presentationRepo.GetActiveByID(ctx, *device.AssignedPresentationID)
}

// Default 获取默认演示文稿，没有时返回 nil
func (s *PresentationService) Default(ctx context.Context) (*model.Presentation, error) {
	return s.presentationRepo.GetDefault(ctx)
}
