package query

import (
	"context"
	"time"
)

// Org is the read-model projection of an organization row.
type Org struct {
	OrgID     string
	Name      string
	State     string
	CreatedAt time.Time
	ChangedAt time.Time
}

// GetOrgByID returns the org scoped to instanceID, or NotFound.
func (q *Queries) GetOrgByID(ctx context.Context, instanceID, orgID string) (Org, error) {
	var o Org
	err := q.pool.QueryRow(ctx, `
		SELECT org_id, name, state, created_at, changed_at
		FROM organizations WHERE instance_id = $1 AND org_id = $2`,
		instanceID, orgID).Scan(&o.OrgID, &o.Name, &o.State, &o.CreatedAt, &o.ChangedAt)
	if err != nil {
		return Org{}, notFound("QUERY-Org01", "org", orgID, err)
	}
	return o, nil
}

// ListOrgs paginates every org in instanceID, optionally filtering by a
// case-insensitive substring of name.
func (q *Queries) ListOrgs(ctx context.Context, instanceID, nameFilter string, p Pagination) (Page[Org], error) {
	var total int
	if err := q.pool.QueryRow(ctx, `
		SELECT count(*) FROM organizations
		WHERE instance_id = $1 AND ($2 = '' OR name ILIKE '%' || $2 || '%')`,
		instanceID, nameFilter).Scan(&total); err != nil {
		return Page[Org]{}, notFound("QUERY-Org02", "org", "", err)
	}

	rows, err := q.pool.Query(ctx, `
		SELECT org_id, name, state, created_at, changed_at
		FROM organizations
		WHERE instance_id = $1 AND ($2 = '' OR name ILIKE '%' || $2 || '%')
		ORDER BY name
		LIMIT NULLIF($3, 0) OFFSET $4`,
		instanceID, nameFilter, p.Limit, p.Offset)
	if err != nil {
		return Page[Org]{}, notFound("QUERY-Org03", "org", "", err)
	}
	defer rows.Close()

	var items []Org
	for rows.Next() {
		var o Org
		if err := rows.Scan(&o.OrgID, &o.Name, &o.State, &o.CreatedAt, &o.ChangedAt); err != nil {
			return Page[Org]{}, notFound("QUERY-Org04", "org", "", err)
		}
		items = append(items, o)
	}
	if err := rows.Err(); err != nil {
		return Page[Org]{}, notFound("QUERY-Org05", "org", "", err)
	}
	return Page[Org]{Items: items, Total: total}, nil
}

// OrgMember is one row of an org's membership list.
type OrgMember struct {
	UserID string
	Roles  []string
}

func (q *Queries) ListOrgMembers(ctx context.Context, instanceID, orgID string, p Pagination) (Page[OrgMember], error) {
	var total int
	if err := q.pool.QueryRow(ctx, `
		SELECT count(*) FROM org_members WHERE instance_id = $1 AND org_id = $2`,
		instanceID, orgID).Scan(&total); err != nil {
		return Page[OrgMember]{}, notFound("QUERY-OrgMember01", "org_member", "", err)
	}

	rows, err := q.pool.Query(ctx, `
		SELECT user_id, roles FROM org_members
		WHERE instance_id = $1 AND org_id = $2
		ORDER BY user_id
		LIMIT NULLIF($3, 0) OFFSET $4`,
		instanceID, orgID, p.Limit, p.Offset)
	if err != nil {
		return Page[OrgMember]{}, notFound("QUERY-OrgMember02", "org_member", "", err)
	}
	defer rows.Close()

	var items []OrgMember
	for rows.Next() {
		var m OrgMember
		if err := rows.Scan(&m.UserID, &m.Roles); err != nil {
			return Page[OrgMember]{}, notFound("QUERY-OrgMember03", "org_member", "", err)
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return Page[OrgMember]{}, notFound("QUERY-OrgMember04", "org_member", "", err)
	}
	return Page[OrgMember]{Items: items, Total: total}, nil
}

// Domain is one row of an org's domain list.
type Domain struct {
	Domain     string
	IsVerified bool
	IsPrimary  bool
}

func (q *Queries) ListOrgDomains(ctx context.Context, instanceID, orgID string) ([]Domain, error) {
	rows, err := q.pool.Query(ctx, `
		SELECT domain, is_verified, is_primary FROM org_domains
		WHERE instance_id = $1 AND org_id = $2 ORDER BY domain`,
		instanceID, orgID)
	if err != nil {
		return nil, notFound("QUERY-OrgDomain01", "org_domain", "", err)
	}
	defer rows.Close()

	var items []Domain
	for rows.Next() {
		var d Domain
		if err := rows.Scan(&d.Domain, &d.IsVerified, &d.IsPrimary); err != nil {
			return nil, notFound("QUERY-OrgDomain02", "org_domain", "", err)
		}
		items = append(items, d)
	}
	return items, rows.Err()
}
