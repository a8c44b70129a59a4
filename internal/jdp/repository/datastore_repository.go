package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/jimyag/jdp/internal/jdp/repository/model"
)

// DatastoreRepository 数据库种类与版本仓库接口
type DatastoreRepository interface {
	CreateDatastore(ctx context.Context, ds *model.Datastore) error
	GetDatastore(ctx context.Context, id string) (*model.Datastore, error)
	GetDatastoreByName(ctx context.Context, name string) (*model.Datastore, error)
	ListDatastores(ctx context.Context) ([]*model.Datastore, error)
	UpdateDatastore(ctx context.Context, ds *model.Datastore) error

	CreateVersion(ctx context.Context, version *model.DatastoreVersion) error
	GetVersion(ctx context.Context, id string) (*model.DatastoreVersion, error)
	ListVersions(ctx context.Context, datastoreID string) ([]*model.DatastoreVersion, error)
	UpdateVersion(ctx context.Context, version *model.DatastoreVersion) error
}

type datastoreRepository struct {
	db *gorm.DB
}

// NewDatastoreRepository 创建数据库种类仓库
func NewDatastoreRepository(db *gorm.DB) DatastoreRepository {
	return &datastoreRepository{db: db}
}

func (r *datastoreRepository) CreateDatastore(ctx context.Context, ds *model.Datastore) error {
	return r.db.WithContext(ctx).Create(ds).Error
}

func (r *datastoreRepository) GetDatastore(ctx context.Context, id string) (*model.Datastore, error) {
	var ds model.Datastore
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&ds).Error; err != nil {
		return nil, err
	}
	return &ds, nil
}

func (r *datastoreRepository) GetDatastoreByName(ctx context.Context, name string) (*model.Datastore, error) {
	var ds model.Datastore
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&ds).Error; err != nil {
		return nil, err
	}
	return &ds, nil
}

func (r *datastoreRepository) ListDatastores(ctx context.Context) ([]*model.Datastore, error) {
	var dss []*model.Datastore
	if err := r.db.WithContext(ctx).Order("name asc").Find(&dss).Error; err != nil {
		return nil, err
	}
	return dss, nil
}

func (r *datastoreRepository) UpdateDatastore(ctx context.Context, ds *model.Datastore) error {
	return r.db.WithContext(ctx).Save(ds).Error
}

func (r *datastoreRepository) CreateVersion(ctx context.Context, version *model.DatastoreVersion) error {
	return r.db.WithContext(ctx).Create(version).Error
}

func (r *datastoreRepository) GetVersion(ctx context.Context, id string) (*model.DatastoreVersion, error) {
	var version model.DatastoreVersion
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&version).Error; err != nil {
		return nil, err
	}
	return &version, nil
}

func (r *datastoreRepository) ListVersions(ctx context.Context, datastoreID string) ([]*model.DatastoreVersion, error) {
	var versions []*model.DatastoreVersion
	if err := r.db.WithContext(ctx).
		Where("datastore_id = ?", datastoreID).
		Order("name asc").
		Find(&versions).Error; err != nil {
		return nil, err
	}
	return versions, nil
}

func (r *datastoreRepository) UpdateVersion(ctx context.Context, version *model.DatastoreVersion) error {
	return r.db.WithContext(ctx).Save(version).Error
}
