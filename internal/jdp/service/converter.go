package service

import (
	"github.com/jinzhu/copier"

	"github.com/jimyag/jdp/internal/jdp/entity"
	"github.com/jimyag/jdp/internal/jdp/repository/model"
)

// instanceModelToEntity 将 model.Instance 转换为 entity.Instance
func instanceModelToEntity(m *model.Instance) (*entity.Instance, error) {
	e := &entity.Instance{}
	if err := copier.Copy(e, m); err != nil {
		return nil, err
	}
	e.Task = entity.Task(m.Task)
	if m.DeletedAt.Valid {
		e.Deleted = true
		t := m.DeletedAt.Time
		e.DeletedAt = &t
	}
	return e, nil
}

// clusterModelToEntity 将 model.Cluster 转换为 entity.Cluster
func clusterModelToEntity(m *model.Cluster) (*entity.Cluster, error) {
	e := &entity.Cluster{}
	if err := copier.Copy(e, m); err != nil {
		return nil, err
	}
	e.Task = entity.Task(m.Task)
	if m.DeletedAt.Valid {
		e.Deleted = true
		t := m.DeletedAt.Time
		e.DeletedAt = &t
	}
	return e, nil
}

// configGroupModelToEntity 将 model.ConfigurationGroup 转换为 entity.ConfigurationGroup
func configGroupModelToEntity(m *model.ConfigurationGroup) (*entity.ConfigurationGroup, error) {
	e := &entity.ConfigurationGroup{}
	if err := copier.Copy(e, m); err != nil {
		return nil, err
	}
	if m.DeletedAt.Valid {
		e.Deleted = true
		t := m.DeletedAt.Time
		e.DeletedAt = &t
	}
	return e, nil
}

// datastoreModelToEntity 将 model.Datastore 转换为 entity.Datastore
func datastoreModelToEntity(m *model.Datastore) (*entity.Datastore, error) {
	e := &entity.Datastore{}
	if err := copier.Copy(e, m); err != nil {
		return nil, err
	}
	return e, nil
}

// versionModelToEntity 将 model.DatastoreVersion 转换为 entity.DatastoreVersion
func versionModelToEntity(m *model.DatastoreVersion) (*entity.DatastoreVersion, error) {
	e := &entity.DatastoreVersion{}
	if err := copier.Copy(e, m); err != nil {
		return nil, err
	}
	return e, nil
}

// parameterModelToEntity 将 model.ConfigurationParameter 转换为 entity.ConfigurationParameter
func parameterModelToEntity(m *model.ConfigurationParameter) (*entity.ConfigurationParameter, error) {
	e := &entity.ConfigurationParameter{}
	if err := copier.Copy(e, m); err != nil {
		return nil, err
	}
	return e, nil
}

// quotaModelToEntity 将 model.Quota 转换为 entity.Quota
func quotaModelToEntity(m *model.Quota) (*entity.Quota, error) {
	e := &entity.Quota{}
	if err := copier.Copy(e, m); err != nil {
		return nil, err
	}
	return e, nil
}

// backupModelToEntity 将 model.Backup 转换为 entity.Backup
func backupModelToEntity(m *model.Backup) (*entity.Backup, error) {
	e := &entity.Backup{}
	if err := copier.Copy(e, m); err != nil {
		return nil, err
	}
	e.State = entity.BackupState(m.State)
	if m.DeletedAt.Valid {
		e.Deleted = true
		t := m.DeletedAt.Time
		e.DeletedAt = &t
	}
	return e, nil
}
