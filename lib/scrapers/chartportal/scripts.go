package chartportal

import (
	"fmt"
	"strconv"
)

// Everything the portal page's markup and script globals mean is
// concentrated in this file. The page exposes no API: products are
// picked through form selects wired to the portal's own change
// handlers, and harvested chart paths accumulate in the window.imgArr
// global as the page's AJAX responses arrive. Each script returns one
// JSON-serializable value so results cross the browser boundary by
// value in a single evaluation.

const scriptAuthProbe = `(() => {
	const logout = document.querySelector("#btnLogout");
	const name = document.querySelector("#userName");
	return {
		logged_in: !!logout,
		username: name ? (name.textContent || "").trim() : "",
	};
})()`

const scriptReadProductTypeCode = `(() => {
	const sel = document.querySelector("#prodType");
	return sel ? sel.value : "";
})()`

const scriptCountProductOptions = `(() => {
	const sel = document.querySelector("#prodList");
	return sel ? sel.querySelectorAll("option").length : 0;
})()`

const scriptExtractCatalog = `(() => {
	const texts = (id) => {
		const sel = document.querySelector(id);
		if (!sel) return [];
		return Array.from(sel.querySelectorAll("option"))
			.map((o) => (o.textContent || "").trim())
			.filter((t) => t.length > 0);
	};

	const products = [];
	const list = document.querySelector("#prodList");
	if (list) {
		const groups = list.querySelectorAll("optgroup");
		if (groups.length > 0) {
			groups.forEach((g) => {
				const category = g.getAttribute("label") || "";
				g.querySelectorAll("option").forEach((o) => {
					products.push({
						id: o.value,
						name: (o.textContent || "").trim(),
						category: category,
					});
				});
			});
		} else {
			list.querySelectorAll("option").forEach((o) => {
				products.push({
					id: o.value,
					name: (o.textContent || "").trim(),
					category: "",
				});
			});
		}
	}

	return {
		products: products,
		categories: texts("#searchCat"),
		types: texts("#searchKind"),
		areas: texts("#searchArea"),
	};
})()`

const scriptClearSteps = `(() => {
	window.imgArr = [];
	return true;
})()`

const scriptCountSteps = `(Array.isArray(window.imgArr) ? window.imgArr.length : 0)`

const scriptCountStepLabels = `document.querySelectorAll("#stepList .step-label").length`

// fn_loadImgList is the page's own loader. Invoking it by hand is the
// fallback when a product select's change handler never fired the
// request, which the portal does intermittently on slow sessions.
const scriptTriggerImageList = `(() => {
	if (typeof window.fn_loadImgList === "function") {
		window.fn_loadImgList();
		return true;
	}
	return false;
})()`

const scriptExtractSteps = `(() => {
	const list = document.querySelector("#prodList");
	const checked = list ? list.querySelector("option:checked") : null;
	const titleEl = document.querySelector("#prodTitle");
	let title = titleEl ? (titleEl.textContent || "").trim() : "";
	if (title === "" && checked) {
		title = (checked.textContent || "").trim();
	}

	const dateSel = document.querySelector("#searchDate");
	const labels = Array.from(document.querySelectorAll("#stepList .step-label"))
		.map((el) => (el.textContent || "").trim());

	return {
		title: title,
		date: dateSel ? dateSel.value : "",
		base: typeof window.imgBase === "string" ? window.imgBase : "",
		imgs: Array.isArray(window.imgArr) ? window.imgArr.map((v) => String(v)) : [],
		labels: labels,
	};
})()`

// scriptSetProductType sets the mode select and fires the portal's
// change handler, which repopulates #prodList via the page's own
// network call. Returns false when the form isn't on the page.
func scriptSetProductType(code string) string {
	return fmt.Sprintf(`(() => {
	const sel = document.querySelector("#prodType");
	if (!sel) return false;
	sel.value = %s;
	sel.dispatchEvent(new Event("change", { bubbles: true }));
	return true;
})()`, strconv.Quote(code))
}

// scriptApplySelects sets one of the optional sub-selects by matching
// either an option's value or its display text.
func scriptApplySelects(selector, wanted string) string {
	return fmt.Sprintf(`(() => {
	const sel = document.querySelector(%s);
	if (!sel) return false;
	const wanted = %s;
	const options = Array.from(sel.querySelectorAll("option"));
	const match = options.find(
		(o) => o.value === wanted || (o.textContent || "").trim() === wanted,
	);
	if (!match) return false;
	sel.value = match.value;
	sel.dispatchEvent(new Event("change", { bubbles: true }));
	return true;
})()`, strconv.Quote(selector), strconv.Quote(wanted))
}

// scriptSelectProduct sets the product list select, fires change and
// echoes back the value that actually stuck so the caller can verify
// the selection took.
func scriptSelectProduct(productId string) string {
	return fmt.Sprintf(`(() => {
	const sel = document.querySelector("#prodList");
	if (!sel) return "";
	sel.value = %s;
	sel.dispatchEvent(new Event("change", { bubbles: true }));
	return sel.value;
})()`, strconv.Quote(productId))
}

func scriptLoginSubmit(username, password string) string {
	return fmt.Sprintf(`(() => {
	const id = document.querySelector("#loginId");
	const pw = document.querySelector("#loginPw");
	const form = id ? id.closest("form") : null;
	if (!id || !pw || !form) return false;
	id.value = %s;
	pw.value = %s;
	if (typeof form.requestSubmit === "function") {
		form.requestSubmit();
	} else {
		form.submit();
	}
	return true;
})()`, strconv.Quote(username), strconv.Quote(password))
}

const scriptLogoutClick = `(() => {
	const btn = document.querySelector("#btnLogout");
	if (!btn) return false;
	btn.click();
	return true;
})()`
