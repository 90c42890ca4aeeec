package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Create products table
			CREATE TABLE products (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				stage VARCHAR(50) NOT NULL,
				category JSONB,
				fields JSONB NOT NULL DEFAULT '{}',
				version BIGINT NOT NULL DEFAULT 1,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_products_stage ON products(stage);
			CREATE INDEX idx_products_created_at ON products(created_at);

			-- Create product_history table; rows are append-only and are
			-- never updated or deleted.
			CREATE TABLE product_history (
				id UUID PRIMARY KEY,
				seq BIGSERIAL,
				product_id UUID NOT NULL REFERENCES products(id),
				from_stage VARCHAR(50) NOT NULL,
				to_stage VARCHAR(50) NOT NULL,
				action VARCHAR(50) NOT NULL,
				actor_role VARCHAR(50) NOT NULL,
				actor_id VARCHAR(255) NOT NULL,
				note TEXT NOT NULL DEFAULT '',
				payload_digest CHAR(64) NOT NULL,
				occurred_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_product_history_product_id ON product_history(product_id, seq);
		`,
	}
}
