package entity

import "time"

// Stamp sets the record's updated_at to now, and created_at as well when
// created is true.
func Stamp(e Entity, now time.Time, created bool) {
	switch v := e.(type) {
	case *Feature:
		if created {
			v.CreatedAt = now
		}
		v.UpdatedAt = now
	case *Task:
		if created {
			v.CreatedAt = now
		}
		v.UpdatedAt = now
	case *Project:
		if created {
			v.CreatedAt = now
		}
		v.UpdatedAt = now
	}
}

// KeepCreated copies created_at from prev when both records are of the same
// type.
func KeepCreated(e, prev Entity) {
	switch v := e.(type) {
	case *Feature:
		if p, ok := prev.(*Feature); ok {
			v.CreatedAt = p.CreatedAt
		}
	case *Task:
		if p, ok := prev.(*Task); ok {
			v.CreatedAt = p.CreatedAt
		}
	case *Project:
		if p, ok := prev.(*Project); ok {
			v.CreatedAt = p.CreatedAt
		}
	}
}

// UpdatedAt returns the record's last modification time.
func UpdatedAt(e Entity) time.Time {
	switch v := e.(type) {
	case *Feature:
		return v.UpdatedAt
	case *Task:
		return v.UpdatedAt
	case *Project:
		return v.UpdatedAt
	}
	return time.Time{}
}

// SetUpdatedAt overwrites the record's updated_at. Remotes read it on a full
// update as the version the change was based on.
func SetUpdatedAt(e Entity, t time.Time) {
	switch v := e.(type) {
	case *Feature:
		v.UpdatedAt = t
	case *Task:
		v.UpdatedAt = t
	case *Project:
		v.UpdatedAt = t
	}
}
