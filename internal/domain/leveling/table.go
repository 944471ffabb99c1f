// Package leveling содержит таблицу уровней: чистое отображение
// накопленного опыта (EXP) в уровень пользователя.
// Пакет не имеет внешних зависимостей и не хранит состояния.
package leveling

import (
	"fmt"
	"strconv"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// DefaultDelta - сколько EXP требуется на каждый следующий уровень по умолчанию.
const DefaultDelta int64 = 200

// Info описывает положение пользователя на шкале уровней.
type Info struct {
	// Level - текущий уровень, начиная с 1.
	Level int `json:"level"`

	// ExpIntoLevel - сколько EXP набрано внутри текущего уровня.
	ExpIntoLevel int64 `json:"expIntoLevel"`

	// ExpToNextLevel - сколько EXP осталось до следующего уровня.
	// Ноль означает, что достигнут максимальный уровень.
	ExpToNextLevel int64 `json:"expToNextLevel"`

	// IsMax - true, если уровень ограничен сверху и достигнут.
	IsMax bool `json:"isMax"`
}

// ══════════════════════════════════════════════════════════════════════════════
// TABLE
// ══════════════════════════════════════════════════════════════════════════════

// Table - ступенчатая таблица уровней.
// deltas[i] - сколько EXP нужно, чтобы перейти с уровня i+1 на уровень i+2.
// За пределами таблицы последняя дельта повторяется.
type Table struct {
	deltas   []int64
	maxLevel int
}

// NewTable создаёт таблицу из списка дельт.
// maxLevel = 0 означает отсутствие верхней границы.
func NewTable(deltas []int64, maxLevel int) (*Table, error) {
	if len(deltas) == 0 {
		return nil, fmt.Errorf("leveling: at least one delta is required")
	}
	for i, d := range deltas {
		if d <= 0 {
			return nil, fmt.Errorf("leveling: delta #%d must be positive, got %d", i+1, d)
		}
	}
	if maxLevel < 0 {
		return nil, fmt.Errorf("leveling: max level must not be negative")
	}

	cp := make([]int64, len(deltas))
	copy(cp, deltas)
	return &Table{deltas: cp, maxLevel: maxLevel}, nil
}

// Default возвращает плоскую таблицу: 200 EXP на каждый уровень, без потолка.
func Default() *Table {
	return &Table{deltas: []int64{DefaultDelta}}
}

// ParseDeltas разбирает строку вида "200,300,1000".
func ParseDeltas(raw string) ([]int64, error) {
	parts := strings.Split(raw, ",")
	result := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("leveling: invalid delta %q: %w", p, err)
		}
		result = append(result, v)
	}
	return result, nil
}

// deltaAt возвращает стоимость перехода с уровня level на level+1.
func (t *Table) deltaAt(level int) int64 {
	idx := level - 1
	if idx >= len(t.deltas) {
		return t.deltas[len(t.deltas)-1]
	}
	return t.deltas[idx]
}

// Of вычисляет уровень для накопленного опыта.
// Функция тотальна: отрицательный опыт считается нулём.
func (t *Table) Of(exp int64) Info {
	if exp < 0 {
		exp = 0
	}

	level := 1
	remaining := exp

	// Табличная часть проходится по шагам, хвост с повторяющейся дельтой
	// считается делением, чтобы большие значения EXP не давали длинный цикл.
	for level <= len(t.deltas) {
		if t.maxLevel > 0 && level >= t.maxLevel {
			return Info{Level: level, ExpIntoLevel: remaining, IsMax: true}
		}
		d := t.deltaAt(level)
		if remaining < d {
			return Info{Level: level, ExpIntoLevel: remaining, ExpToNextLevel: d - remaining}
		}
		remaining -= d
		level++
	}

	last := t.deltas[len(t.deltas)-1]
	steps := remaining / last
	if t.maxLevel > 0 && int64(level)+steps >= int64(t.maxLevel) {
		used := int64(t.maxLevel - level)
		return Info{Level: t.maxLevel, ExpIntoLevel: remaining - used*last, IsMax: true}
	}

	level += int(steps)
	remaining -= steps * last
	return Info{Level: level, ExpIntoLevel: remaining, ExpToNextLevel: last - remaining}
}

// Threshold возвращает суммарный EXP, необходимый для достижения уровня.
func (t *Table) Threshold(level int) int64 {
	var total int64
	l := 1
	for ; l < level && l <= len(t.deltas); l++ {
		total += t.deltas[l-1]
	}
	if l < level {
		total += int64(level-l) * t.deltas[len(t.deltas)-1]
	}
	return total
}

// LeveledUp сообщает, достиг ли after порога следующего уровня после before.
func (t *Table) LeveledUp(before, after int64) bool {
	cur := t.Of(before)
	return !cur.IsMax && after >= t.Threshold(cur.Level+1)
}

// MaxLevel возвращает потолок уровня (0 - без ограничения).
func (t *Table) MaxLevel() int {
	return t.maxLevel
}
