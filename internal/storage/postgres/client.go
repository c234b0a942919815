package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Client 封装 PostgreSQL 连接池
//
// 列表查询走 pgx 原生 SQL 快路径；常规读写由 GORM 承担。
type Client struct {
	pool *pgxpool.Pool
}

// NewClient 创建新的 PostgreSQL 客户端
func NewClient(dsn string, maxConns, minConns int) (*Client, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database DSN is required")
	}

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database DSN: %w", err)
	}

	poolConfig.MaxConns = int32(maxConns)
	poolConfig.MinConns = int32(minConns)
	poolConfig.MaxConnLifetime = 5 * time.Minute
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// 测试连接
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Client{pool: pool}, nil
}

// Pool 返回底层连接池
func (c *Client) Pool() *pgxpool.Pool {
	return c.pool
}

// Health 探测数据库可用性
func (c *Client) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return c.pool.Ping(ctx)
}

// Close 关闭连接池
func (c *Client) Close() {
	c.pool.Close()
}
