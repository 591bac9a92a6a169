// Copyright 2023 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package schema

import (
	"github.com/juju/storefront/core/database/schema"
)

// StorefrontDDL is used to create the storefront database.
func StorefrontDDL() *schema.Schema {
	patches := []func() schema.Patch{
		productSchema,
		userSchema,
		cartSchema,
		ticketSchema,
	}

	ddl := schema.New()
	for _, fn := range patches {
		ddl.Add(fn())
	}
	return ddl
}

func productSchema() schema.Patch {
	return schema.MakePatch(`
CREATE TABLE product_category (
    id INT PRIMARY KEY,
    name TEXT NOT NULL
);

CREATE UNIQUE INDEX idx_product_category_name
ON product_category (name);

INSERT INTO product_category VALUES
    (0, 'electronics'),
    (1, 'clothing'),
    (2, 'food'),
    (3, 'home'),
    (4, 'other');

CREATE TABLE product_status (
    id INT PRIMARY KEY,
    name TEXT NOT NULL
);

CREATE UNIQUE INDEX idx_product_status_name
ON product_status (name);

INSERT INTO product_status VALUES
    (0, 'available'),
    (1, 'out of stock'),
    (2, 'discontinued');

CREATE TABLE product (
    uuid TEXT PRIMARY KEY,
    code TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT NOT NULL,
    price INT NOT NULL CHECK (price >= 0),
    stock INT NOT NULL CHECK (stock >= 0),
    category TEXT NOT NULL DEFAULT 'other',
    status TEXT NOT NULL DEFAULT 'available',
    image TEXT NOT NULL,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL,
    CONSTRAINT fk_product_category
        FOREIGN KEY (category)
        REFERENCES product_category(name),
    CONSTRAINT fk_product_status
        FOREIGN KEY (status)
        REFERENCES product_status(name)
);

CREATE UNIQUE INDEX idx_product_code
ON product (code);

CREATE INDEX idx_product_price
ON product (price);

CREATE TABLE product_thumbnail (
    product_uuid TEXT NOT NULL,
    position INT NOT NULL,
    path TEXT NOT NULL,
    CONSTRAINT fk_product_thumbnail_product
        FOREIGN KEY (product_uuid)
        REFERENCES product(uuid)
        ON DELETE CASCADE,
    PRIMARY KEY (product_uuid, position)
);
`[1:])
}

func userSchema() schema.Patch {
	return schema.MakePatch(`
CREATE TABLE user_role (
    id INT PRIMARY KEY,
    name TEXT NOT NULL
);

CREATE UNIQUE INDEX idx_user_role_name
ON user_role (name);

INSERT INTO user_role VALUES
    (0, 'user'),
    (1, 'admin');

CREATE TABLE user (
    uuid TEXT PRIMARY KEY,
    email TEXT NOT NULL,
    first_name TEXT NOT NULL,
    last_name TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role TEXT NOT NULL DEFAULT 'user',
    photo TEXT NOT NULL DEFAULT '',
    verified BOOLEAN NOT NULL DEFAULT FALSE,
    verification_code TEXT,
    created_at DATETIME NOT NULL,
    CONSTRAINT fk_user_role
        FOREIGN KEY (role)
        REFERENCES user_role(name)
);

CREATE UNIQUE INDEX idx_user_email
ON user (email COLLATE NOCASE);
`[1:])
}

func cartSchema() schema.Patch {
	return schema.MakePatch(`
CREATE TABLE cart_state (
    id INT PRIMARY KEY,
    name TEXT NOT NULL
);

CREATE UNIQUE INDEX idx_cart_state_name
ON cart_state (name);

INSERT INTO cart_state VALUES
    (0, 'reserved'),
    (1, 'paid'),
    (2, 'delivered');

CREATE TABLE cart (
    uuid TEXT PRIMARY KEY,
    user_uuid TEXT,
    state_id INT NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL,
    CONSTRAINT fk_cart_user
        FOREIGN KEY (user_uuid)
        REFERENCES user(uuid)
        ON DELETE SET NULL,
    CONSTRAINT fk_cart_state
        FOREIGN KEY (state_id)
        REFERENCES cart_state(id)
);

CREATE TABLE cart_item (
    cart_uuid TEXT NOT NULL,
    product_uuid TEXT NOT NULL,
    quantity INT NOT NULL CHECK (quantity >= 1),
    position INT NOT NULL,
    CONSTRAINT fk_cart_item_cart
        FOREIGN KEY (cart_uuid)
        REFERENCES cart(uuid)
        ON DELETE CASCADE,
    CONSTRAINT fk_cart_item_product
        FOREIGN KEY (product_uuid)
        REFERENCES product(uuid)
        ON DELETE CASCADE,
    PRIMARY KEY (cart_uuid, product_uuid)
);

CREATE INDEX idx_cart_item_position
ON cart_item (cart_uuid, position);
`[1:])
}

func ticketSchema() schema.Patch {
	return schema.MakePatch(`
CREATE TABLE ticket_status (
    id INT PRIMARY KEY,
    name TEXT NOT NULL
);

CREATE UNIQUE INDEX idx_ticket_status_name
ON ticket_status (name);

INSERT INTO ticket_status VALUES
    (0, 'pending'),
    (1, 'completed'),
    (2, 'cancelled');

-- Tickets are snapshots, so the items deliberately hold no foreign key
-- to the product table.
CREATE TABLE ticket (
    uuid TEXT PRIMARY KEY,
    code TEXT NOT NULL,
    user_uuid TEXT NOT NULL,
    cart_uuid TEXT,
    total_amount INT NOT NULL CHECK (total_amount >= 0),
    status_id INT NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL,
    CONSTRAINT fk_ticket_user
        FOREIGN KEY (user_uuid)
        REFERENCES user(uuid),
    CONSTRAINT fk_ticket_status
        FOREIGN KEY (status_id)
        REFERENCES ticket_status(id)
);

CREATE UNIQUE INDEX idx_ticket_code
ON ticket (code);

CREATE INDEX idx_ticket_user
ON ticket (user_uuid);

CREATE TABLE ticket_item (
    ticket_uuid TEXT NOT NULL,
    position INT NOT NULL,
    product_uuid TEXT NOT NULL,
    product_title TEXT NOT NULL,
    quantity INT NOT NULL CHECK (quantity >= 1),
    price INT NOT NULL CHECK (price >= 0),
    CONSTRAINT fk_ticket_item_ticket
        FOREIGN KEY (ticket_uuid)
        REFERENCES ticket(uuid)
        ON DELETE CASCADE,
    PRIMARY KEY (ticket_uuid, position)
);
`[1:])
}
