package repository

import "errors"

// ErrNotFound — запись не найдена (или не подошла под условие атомарного обновления).
var ErrNotFound = errors.New("not found")
