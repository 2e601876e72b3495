package patient

import "context"

// StaticDirectory serves a fixed set of profiles from memory. It backs
// deployments without a database and the test suite.
type StaticDirectory struct {
	byID   map[string]*Profile
	byCode map[string]*Profile
}

func NewStaticDirectory(profiles ...*Profile) *StaticDirectory {
	d := &StaticDirectory{
		byID:   make(map[string]*Profile, len(profiles)),
		byCode: make(map[string]*Profile, len(profiles)),
	}
	for _, p := range profiles {
		if p == nil || p.ID == "" {
			continue
		}
		d.byID[p.ID] = p
		if p.Code != "" {
			d.byCode[p.Code] = p
		}
	}
	return d
}

func (d *StaticDirectory) FindByID(_ context.Context, id string) (*Profile, error) {
	if p, ok := d.byID[id]; ok {
		out := *p
		return &out, nil
	}
	return nil, ErrNotFound
}

func (d *StaticDirectory) FindByCode(_ context.Context, code string) (*Profile, error) {
	if p, ok := d.byCode[code]; ok {
		out := *p
		return &out, nil
	}
	return nil, ErrNotFound
}

func (d *StaticDirectory) Close() error { return nil }
