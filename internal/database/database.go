package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"rastreador-precos/internal/models"
)

// ErrNotFound é retornado quando o produto pedido não existe
var ErrNotFound = errors.New("produto não encontrado")

// limite de parâmetros por consulta IN, abaixo do máximo do SQLite
const maxQueryParams = 500

const productColumns = `id, user_id, url, source, currency, name,
	current_price_display, current_price_amount, original_price_display, original_price_amount,
	discount, rating, reviews_count, images, metadata, last_checked, created_at`

// DB encapsula a conexão com o banco de dados
type DB struct {
	conn *sql.DB
	log  zerolog.Logger
}

// New abre (ou cria) o banco SQLite e aplica o esquema
func New(dbPath string, log zerolog.Logger) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", dbPath)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// SQLite aceita um escritor por vez
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn, log: log.With().Str("component", "database").Logger()}

	if err := db.init(); err != nil {
		conn.Close()
		return nil, err
	}

	db.log.Info().Str("path", dbPath).Msg("banco de dados inicializado com sucesso")
	return db, nil
}

// Close fecha a conexão com o banco de dados
func (db *DB) Close() error {
	return db.conn.Close()
}

// init cria as tabelas necessárias
func (db *DB) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		currency TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		current_price_display TEXT NOT NULL DEFAULT 'N/A',
		current_price_amount INTEGER NOT NULL DEFAULT 0,
		original_price_display TEXT NOT NULL DEFAULT 'N/A',
		original_price_amount INTEGER NOT NULL DEFAULT 0,
		discount REAL NOT NULL DEFAULT 0,
		rating REAL NOT NULL DEFAULT 0,
		reviews_count INTEGER NOT NULL DEFAULT 0,
		images TEXT,
		last_checked DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- sem chave estrangeira para products: referências órfãs são limpas pelo monitor
	CREATE TABLE IF NOT EXISTS user_trackings (
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		product_id TEXT NOT NULL,
		added_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (user_id, product_id)
	);

	CREATE INDEX IF NOT EXISTS idx_user_trackings_product ON user_trackings(product_id);
	`

	if _, err := db.conn.Exec(schema); err != nil {
		return fmt.Errorf("criar esquema: %w", err)
	}

	// SQLite não suporta IF NOT EXISTS em ALTER TABLE, então ignoramos o erro
	_, _ = db.conn.Exec("ALTER TABLE products ADD COLUMN metadata TEXT")

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner) (models.Product, error) {
	var (
		p           models.Product
		images      sql.NullString
		metadata    sql.NullString
		lastChecked sql.NullTime
		createdAt   sql.NullTime
	)
	err := row.Scan(
		&p.ID, &p.UserID, &p.URL, &p.Source, &p.Currency, &p.Name,
		&p.CurrentPrice.Display, &p.CurrentPrice.Amount, &p.OriginalPrice.Display, &p.OriginalPrice.Amount,
		&p.Discount, &p.Rating, &p.ReviewsCount, &images, &metadata, &lastChecked, &createdAt,
	)
	if err != nil {
		return models.Product{}, err
	}
	if images.Valid && images.String != "" {
		if err := json.Unmarshal([]byte(images.String), &p.Images); err != nil {
			return models.Product{}, fmt.Errorf("imagens do produto %s: %w", p.ID, err)
		}
	}
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &p.Metadata); err != nil {
			return models.Product{}, fmt.Errorf("metadados do produto %s: %w", p.ID, err)
		}
	}
	if lastChecked.Valid {
		p.LastChecked = lastChecked.Time
	}
	if createdAt.Valid {
		p.CreatedAt = createdAt.Time
	}
	return p, nil
}

func encodeJSON(v any) (sql.NullString, error) {
	switch t := v.(type) {
	case []string:
		if len(t) == 0 {
			return sql.NullString{}, nil
		}
	case map[string]string:
		if len(t) == 0 {
			return sql.NullString{}, nil
		}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func chunks(ids []string) [][]string {
	var out [][]string
	for len(ids) > maxQueryParams {
		out = append(out, ids[:maxQueryParams])
		ids = ids[maxQueryParams:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}

// InsertProduct grava um novo produto. CreatedAt e LastChecked vazios viram agora.
func (db *DB) InsertProduct(ctx context.Context, p models.Product) error {
	if p.ID == "" {
		return errors.New("produto sem id")
	}
	images, err := encodeJSON(p.Images)
	if err != nil {
		return fmt.Errorf("codificar imagens: %w", err)
	}
	metadata, err := encodeJSON(p.Metadata)
	if err != nil {
		return fmt.Errorf("codificar metadados: %w", err)
	}

	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.LastChecked.IsZero() {
		p.LastChecked = now
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO products (`+productColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.URL, p.Source, p.Currency, p.Name,
		p.CurrentPrice.Display, p.CurrentPrice.Amount, p.OriginalPrice.Display, p.OriginalPrice.Amount,
		p.Discount, p.Rating, p.ReviewsCount, images, metadata, p.LastChecked, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserir produto %s: %w", p.ID, err)
	}
	return nil
}

// GetProduct retorna um produto pelo ID
func (db *DB) GetProduct(ctx context.Context, id string) (models.Product, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Product{}, ErrNotFound
	}
	return p, err
}

// GetProducts carrega os produtos existentes entre os ids pedidos. Ids sem
// produto simplesmente não aparecem no mapa.
func (db *DB) GetProducts(ctx context.Context, ids []string) (map[string]models.Product, error) {
	out := make(map[string]models.Product, len(ids))
	for _, chunk := range chunks(ids) {
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		rows, err := db.conn.QueryContext(ctx,
			`SELECT `+productColumns+` FROM products WHERE id IN (`+placeholders(len(chunk))+`)`, args...)
		if err != nil {
			return nil, fmt.Errorf("buscar produtos: %w", err)
		}
		for rows.Next() {
			p, err := scanProduct(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			out[p.ID] = p
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// CountProduct retorna quantos produtos existem com o id (0 ou 1)
func (db *DB) CountProduct(ctx context.Context, id string) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM products WHERE id = ?", id).Scan(&count)
	return count, err
}

// UpdateProduct grava o resultado de uma verificação de preço
func (db *DB) UpdateProduct(ctx context.Context, id string, upd models.ProductUpdate) error {
	images, err := encodeJSON(upd.Images)
	if err != nil {
		return fmt.Errorf("codificar imagens: %w", err)
	}
	checkedAt := upd.CheckedAt
	if checkedAt.IsZero() {
		checkedAt = time.Now().UTC()
	}

	res, err := db.conn.ExecContext(ctx,
		`UPDATE products SET name = ?, currency = ?,
			current_price_display = ?, current_price_amount = ?,
			original_price_display = ?, original_price_amount = ?,
			discount = ?, rating = ?, reviews_count = ?, images = ?, last_checked = ?
		WHERE id = ?`,
		upd.Name, upd.Currency,
		upd.CurrentPrice.Display, upd.CurrentPrice.Amount,
		upd.OriginalPrice.Display, upd.OriginalPrice.Amount,
		upd.Discount, upd.Rating, upd.ReviewsCount, images, checkedAt,
		id,
	)
	if err != nil {
		return fmt.Errorf("atualizar produto %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertUser registra o usuário se ainda não existir e informa se ele é novo
func (db *DB) UpsertUser(ctx context.Context, userID string) (bool, error) {
	res, err := db.conn.ExecContext(ctx, "INSERT OR IGNORE INTO users (id) VALUES (?)", userID)
	if err != nil {
		return false, fmt.Errorf("registrar usuário %s: %w", userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// AppendTrackedID adiciona o produto à lista do usuário, criando o usuário se preciso
func (db *DB) AppendTrackedID(ctx context.Context, userID, productID string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO users (id) VALUES (?)", userID); err != nil {
		return fmt.Errorf("registrar usuário %s: %w", userID, err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO user_trackings (user_id, product_id) VALUES (?, ?)", userID, productID,
	); err != nil {
		return fmt.Errorf("adicionar monitoramento: %w", err)
	}
	return tx.Commit()
}

// RemoveTrackedIDs tira os produtos da lista do usuário
func (db *DB) RemoveTrackedIDs(ctx context.Context, userID string, productIDs []string) error {
	for _, chunk := range chunks(productIDs) {
		args := make([]any, 0, len(chunk)+1)
		args = append(args, userID)
		for _, id := range chunk {
			args = append(args, id)
		}
		_, err := db.conn.ExecContext(ctx,
			`DELETE FROM user_trackings WHERE user_id = ? AND product_id IN (`+placeholders(len(chunk))+`)`, args...)
		if err != nil {
			return fmt.Errorf("remover monitoramentos de %s: %w", userID, err)
		}
	}
	return nil
}

// TrackedIDs retorna a lista de produtos do usuário, na ordem em que foram adicionados
func (db *DB) TrackedIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT product_id FROM user_trackings WHERE user_id = ? ORDER BY added_at, rowid", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListSubscribers retorna todos os usuários com suas listas de produtos
func (db *DB) ListSubscribers(ctx context.Context) ([]models.Subscriber, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT u.id, t.product_id
		FROM users u
		LEFT JOIN user_trackings t ON t.user_id = u.id
		ORDER BY u.id, t.added_at, t.rowid`)
	if err != nil {
		return nil, fmt.Errorf("listar usuários: %w", err)
	}
	defer rows.Close()

	var subscribers []models.Subscriber
	for rows.Next() {
		var (
			userID    string
			productID sql.NullString
		)
		if err := rows.Scan(&userID, &productID); err != nil {
			return nil, err
		}
		if n := len(subscribers); n == 0 || subscribers[n-1].ID != userID {
			subscribers = append(subscribers, models.Subscriber{ID: userID})
		}
		if productID.Valid {
			last := &subscribers[len(subscribers)-1]
			last.TrackedIDs = append(last.TrackedIDs, productID.String)
		}
	}
	return subscribers, rows.Err()
}
