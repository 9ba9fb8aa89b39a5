package ids

// Replacement is one rule in the app-id replacement list (spec §3). Rule
// application iterates to a fixed point; a second replacement targets
// the previous replacement's Original, not the ultimate original — this
// load-bearing ordering detail is preserved from
// original_source/src/sandstorm/appid-replacements.c++.
type Replacement struct {
	Original               AppID
	Replacement            *AppID
	RevokeExceptPackageIDs []PackageID
}

// ApplyAppIDReplacements checks whether appID (which has just been
// verified to have signed packageID) is revoked, and if not, canonicalises
// any replacement key back to its original. Rules are scanned in the
// order given, which the original source documents as load-bearing when
// two rules share the same Original (Design Notes §9).
func ApplyAppIDReplacements(appID AppID, packageID PackageID, rules []Replacement) (AppID, bool) {
	// First pass: is appID revoked? A rule revokes its Original unless
	// the package being verified is explicitly grandfathered in via
	// RevokeExceptPackageIDs.
	for _, r := range rules {
		if r.Original != appID {
			continue
		}
		if r.RevokeExceptPackageIDs == nil {
			continue
		}
		allowed := false
		for _, pkg := range r.RevokeExceptPackageIDs {
			if pkg == packageID {
				allowed = true
				break
			}
		}
		if !allowed {
			return AppID{}, false // signed with a revoked key
		}
	}

	// Second pass: walk replacement→original links to a fixed point.
	// File order matters: a later rule whose Replacement equals the
	// *original's* original (not the ultimate original) is re-resolved
	// by looping the same scan again from the top.
	current := appID
	for {
		replaced := false
		for _, r := range rules {
			if r.Replacement != nil && *r.Replacement == current {
				current = r.Original
				replaced = true
				break
			}
		}
		if !replaced {
			break
		}
	}
	return current, true
}

// CurrentSigningKey walks the replacement table forward (original →
// replacement) to find the key an app currently signs packages with.
// This is the dual of ApplyAppIDReplacements's backward walk, supplementing
// the distilled spec with the original's getPublicKeyForApp (appid-replacements.c++).
func CurrentSigningKey(appID AppID, rules []Replacement) AppID {
	current := appID
	for {
		advanced := false
		for _, r := range rules {
			if r.Original == current && r.Replacement != nil {
				current = *r.Replacement
				advanced = true
				break
			}
		}
		if !advanced {
			break
		}
	}
	return current
}
