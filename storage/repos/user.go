package repos

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/nbkrcse/labtrack/core"
	"github.com/nbkrcse/labtrack/core/lab"
	"github.com/nbkrcse/labtrack/core/user"
)

// userRecord is the stored shape of a user. Unlike user.User it carries the password hash.
type userRecord struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	IsFirstLogin bool      `json:"is_first_login"`
	RollNumber   string    `json:"roll_number,omitempty"`
	SectionID    string    `json:"section_id,omitempty"`
	PasswordHash []byte    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

func (repo userRepository) boil(usr user.User) userRecord {
	rec := userRecord{
		ID:           usr.ID,
		Name:         usr.Name,
		Email:        usr.Email,
		Role:         string(usr.Role),
		IsFirstLogin: usr.IsFirstLogin,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
	}
	if usr.Student != nil {
		rec.RollNumber = usr.Student.RollNumber
		rec.SectionID = usr.Student.SectionID
	}
	return rec
}

func (repo userRepository) unboil(rec userRecord) user.User {
	usr := user.User{
		ID:           rec.ID,
		Name:         rec.Name,
		Email:        rec.Email,
		Role:         user.Role(rec.Role),
		IsFirstLogin: rec.IsFirstLogin,
		PasswordHash: rec.PasswordHash,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}
	if usr.Role == user.RoleStudent {
		usr.Student = &user.StudentInfo{RollNumber: rec.RollNumber, SectionID: rec.SectionID}
	}
	return usr
}

func (repo userRepository) loadRecords(ctx context.Context, collection string) ([]userRecord, error) {
	recs := make([]userRecord, 0)
	if err := repo.db.load(ctx, collection, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

func (repo userRepository) query(ctx context.Context, collection string) ([]user.User, error) {
	recs, err := repo.loadRecords(ctx, collection)
	if err != nil {
		return nil, err
	}
	users := make([]user.User, 0, len(recs))
	for _, rec := range recs {
		users = append(users, repo.unboil(rec))
	}
	return users, nil
}

func (repo userRepository) QueryFaculty(ctx context.Context) ([]user.User, error) {
	return repo.query(ctx, core.CollectionFaculty)
}

func (repo userRepository) QueryStudents(ctx context.Context) ([]user.User, error) {
	return repo.query(ctx, core.CollectionStudents)
}

func (repo userRepository) QueryUsers(ctx context.Context) ([]user.User, error) {
	faculty, err := repo.QueryFaculty(ctx)
	if err != nil {
		return nil, err
	}
	students, err := repo.QueryStudents(ctx)
	if err != nil {
		return nil, err
	}
	return append(faculty, students...), nil
}

func (repo userRepository) GetUser(ctx context.Context, id string) (user.User, error) {
	users, err := repo.QueryUsers(ctx)
	if err != nil {
		return user.User{}, err
	}
	for _, usr := range users {
		if usr.ID == id {
			return usr, nil
		}
	}
	return user.User{}, core.NewNotFoundError("user", id)
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	coll, err := usr.Role.Collection()
	if err != nil {
		return user.User{}, err
	}

	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	recs, err := repo.loadRecords(ctx, coll)
	if err != nil {
		return user.User{}, err
	}
	usr.ID = core.NewID(usr.Role.IDPrefix())
	rec := repo.boil(usr)
	if err := repo.db.save(ctx, coll, append(recs, rec)); err != nil {
		return user.User{}, err
	}
	return repo.unboil(rec), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	coll, err := usr.Role.Collection()
	if err != nil {
		return user.User{}, err
	}

	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	recs, err := repo.loadRecords(ctx, coll)
	if err != nil {
		return user.User{}, err
	}
	for i := range recs {
		if recs[i].ID == usr.ID {
			rec := repo.boil(usr)
			rec.CreatedAt = recs[i].CreatedAt
			if len(rec.PasswordHash) == 0 {
				rec.PasswordHash = recs[i].PasswordHash
			}
			recs[i] = rec
			if err := repo.db.save(ctx, coll, recs); err != nil {
				return user.User{}, err
			}
			return repo.unboil(rec), nil
		}
	}
	return user.User{}, core.NewNotFoundError(string(usr.Role), usr.ID)
}

// DeleteStudent removes the student and every status of theirs. With a core.BatchStore both
// collections are written atomically; otherwise statuses are written first so that a failure
// can at worst leave a student without statuses.
func (repo userRepository) DeleteStudent(ctx context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	recs, err := repo.loadRecords(ctx, core.CollectionStudents)
	if err != nil {
		return err
	}
	idx := -1
	for i, rec := range recs {
		if rec.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return core.NewNotFoundError("student", id)
	}
	remaining := append(recs[:idx:idx], recs[idx+1:]...)

	statuses := make([]lab.Status, 0)
	if err := repo.db.load(ctx, core.CollectionStatuses, &statuses); err != nil {
		return err
	}
	kept := make([]lab.Status, 0, len(statuses))
	for _, st := range statuses {
		if st.StudentID != id {
			kept = append(kept, st)
		}
	}

	studentsData, err := encode(core.CollectionStudents, remaining)
	if err != nil {
		return err
	}
	statusesData, err := encode(core.CollectionStatuses, kept)
	if err != nil {
		return err
	}
	err = repo.db.saveMany(ctx,
		[]string{core.CollectionStatuses, core.CollectionStudents},
		map[string][]byte{core.CollectionStatuses: statusesData, core.CollectionStudents: studentsData},
	)
	return errors.Wrapf(err, "deleting student %s", id)
}
