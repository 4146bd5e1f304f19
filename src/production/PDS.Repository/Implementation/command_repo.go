package implementation

import (
	"context"
	"database/sql"
	"errors"
	"time"

	pdsmodels "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Models"
)

type PostgresCommandRepository struct {
	db *sql.DB
}

func NewPostgresCommandRepository(db *sql.DB) *PostgresCommandRepository {
	return &PostgresCommandRepository{db: db}
}

const commandColumns = `id, device_id, type, payload, status, created_at, consumed_at`

func (r *PostgresCommandRepository) CreateCommand(ctx context.Context, cmd pdsmodels.Command) (*pdsmodels.Command, error) {
	query := `
		INSERT INTO commands (id, device_id, type, payload, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + commandColumns

	row := r.db.QueryRowContext(ctx, query,
		cmd.ID, cmd.DeviceID, string(cmd.Type), jsonOrEmptyObject(cmd.Payload), string(cmd.Status))
	return scanCommand(row)
}

func (r *PostgresCommandRepository) GetCommand(ctx context.Context, deviceID, commandID string) (*pdsmodels.Command, error) {
	query := `SELECT ` + commandColumns + ` FROM commands WHERE id = $1 AND device_id = $2`
	return scanCommand(r.db.QueryRowContext(ctx, query, commandID, deviceID))
}

func (r *PostgresCommandRepository) ListPendingCommands(ctx context.Context, deviceID string, limit int) ([]pdsmodels.Command, error) {
	query := `
		SELECT ` + commandColumns + `
		FROM commands
		WHERE device_id = $1 AND status = 'pending'
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, deviceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	commands := make([]pdsmodels.Command, 0)
	for rows.Next() {
		cmd, err := scanCommand(rows)
		if err != nil {
			return nil, err
		}
		commands = append(commands, *cmd)
	}

	return commands, rows.Err()
}

func (r *PostgresCommandRepository) MarkConsumed(ctx context.Context, deviceID, commandID string, at time.Time) (*pdsmodels.Command, error) {
	query := `
		UPDATE commands
		SET status = 'consumed', consumed_at = $3
		WHERE id = $1 AND device_id = $2 AND status = 'pending'
		RETURNING ` + commandColumns

	return scanCommand(r.db.QueryRowContext(ctx, query, commandID, deviceID, at))
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCommand(row rowScanner) (*pdsmodels.Command, error) {
	var cmd pdsmodels.Command
	var cmdType, status string
	var payload []byte
	var consumedAt sql.NullTime

	err := row.Scan(&cmd.ID, &cmd.DeviceID, &cmdType, &payload, &status, &cmd.CreatedAt, &consumedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, err
	}

	cmd.Type = pdsmodels.CommandType(cmdType)
	cmd.Status = pdsmodels.CommandStatus(status)
	cmd.Payload = payload
	if consumedAt.Valid {
		t := consumedAt.Time
		cmd.ConsumedAt = &t
	}
	return &cmd, nil
}
