package crawler

import (
	"context"
	"fmt"
	"time"

	"github.com/ysmood/gson"

	"github.com/v0xg/formpilot/internal/driver"
)

// interactiveCountJS counts visible controls; SPAs render them late
const interactiveCountJS = `() => {
	const sel = 'button, [role="button"], input:not([type="hidden"]), textarea, select, a[href], [role="combobox"], [role="option"]';
	let visible = 0;
	document.querySelectorAll(sel).forEach(el => { if (el.offsetParent) visible++; });
	return visible;
}`

// snapshotJS extracts the page map in one round trip
const snapshotJS = `() => {
	const elements = [];
	const seen = new Set();

	function isValidCSSClass(cls) {
		if (!cls || cls.length === 0) return false;
		if (/^[0-9]/.test(cls)) return false;
		if (/^-[0-9]/.test(cls)) return false;
		if (/[.:#\[\]()>~+*\/\\]/.test(cls)) return false;
		return true;
	}

	function getSelector(el) {
		if (el.id && isValidCSSClass(el.id)) return '#' + el.id;
		if (el.name) {
			const byName = el.tagName.toLowerCase() + '[name="' + el.name + '"]';
			if (document.querySelectorAll(byName).length === 1) return byName;
		}
		if (el.className && typeof el.className === 'string') {
			const valid = el.className.trim().split(/\s+/).filter(isValidCSSClass).slice(0, 2);
			if (valid.length > 0) {
				const selector = el.tagName.toLowerCase() + '.' + valid.join('.');
				try {
					if (document.querySelectorAll(selector).length === 1) return selector;
				} catch (e) {}
			}
		}
		const parent = el.parentElement;
		if (parent && parent !== document.documentElement) {
			const index = Array.from(parent.children).indexOf(el) + 1;
			return getSelector(parent) + ' > ' + el.tagName.toLowerCase() + ':nth-child(' + index + ')';
		}
		return el.tagName.toLowerCase();
	}

	function clip(s, n) { return (s || '').replace(/\s+/g, ' ').trim().slice(0, n); }

	function labelOf(el) {
		if (el.labels && el.labels.length) return clip(el.labels[0].innerText, 60);
		const aria = el.getAttribute('aria-label');
		if (aria) return clip(aria, 60);
		const by = el.getAttribute('aria-labelledby');
		if (by) {
			const ref = document.getElementById(by);
			if (ref) return clip(ref.innerText, 60);
		}
		return '';
	}

	function add(el, type, extra) {
		if (!el.offsetParent) return;
		const selector = getSelector(el);
		if (seen.has(selector)) return;
		seen.add(selector);
		elements.push(Object.assign({
			selector: selector,
			type: type,
			text: clip(el.innerText || el.value, 50),
			label: labelOf(el),
			id: el.id || '',
			name: el.name || ''
		}, extra || {}));
	}

	document.querySelectorAll('button, [role="button"], input[type="submit"], input[type="button"]').forEach(el => add(el, 'button'));

	document.querySelectorAll('input:not([type="hidden"]):not([type="submit"]):not([type="button"]):not([type="checkbox"]):not([type="radio"]), textarea').forEach(el => {
		add(el, el.type || 'text', { text: '', placeholder: el.placeholder || '', value: clip(el.value, 50) });
	});

	document.querySelectorAll('select').forEach(el => {
		const options = Array.from(el.options).slice(0, 30).map(o => clip(o.text, 30));
		add(el, 'select', { text: '', options: options, value: el.selectedIndex >= 0 ? clip(el.options[el.selectedIndex].text, 30) : '' });
	});

	document.querySelectorAll('input[type="checkbox"], input[type="radio"], [role="radio"], [role="checkbox"]').forEach(el => {
		add(el, el.type || el.getAttribute('role'));
	});

	document.querySelectorAll('[role="combobox"], [aria-haspopup="listbox"]').forEach(el => add(el, 'combobox'));
	document.querySelectorAll('[role="option"], [role="menuitem"]').forEach(el => add(el, 'option'));

	document.querySelectorAll('a[href]').forEach(el => {
		const href = el.getAttribute('href');
		if (href.startsWith('#') || href.startsWith('javascript:')) return;
		add(el, 'link');
	});

	const navigation = [];
	const hrefs = new Set();
	document.querySelectorAll('nav a, header a, [role="navigation"] a').forEach(el => {
		if (!el.offsetParent) return;
		const href = el.getAttribute('href');
		if (!href || href === '#' || href.startsWith('javascript:') || hrefs.has(href)) return;
		hrefs.add(href);
		navigation.push({ selector: el.id ? '#' + el.id : 'a[href="' + href + '"]', text: clip(el.textContent, 30), href: href });
	});

	const spa = !!(window.__REACT_DEVTOOLS_GLOBAL_HOOK__ || document.querySelector('[data-reactroot], #__next') ||
		window.__VUE__ || document.querySelector('[data-v-app]') ||
		window.ng || document.querySelector('[ng-version], app-root') ||
		document.querySelector('[class*="svelte-"]'));

	return { url: location.href, title: document.title, isSPA: spa, elements: elements, navigation: navigation };
}`

// Snapshot extracts the page map of the current document
func Snapshot(ctx context.Context, page driver.Page) (*PageMap, error) {
	data, err := page.EvalJSON(ctx, snapshotJS)
	if err != nil {
		return nil, fmt.Errorf("failed to extract page map: %w", err)
	}
	return decode(gson.NewFrom(string(data))), nil
}

// decode reads the snapshot result leniently; absent fields stay empty
func decode(j gson.JSON) *PageMap {
	m := &PageMap{
		URL:   j.Get("url").Str(),
		Title: j.Get("title").Str(),
		IsSPA: j.Get("isSPA").Bool(),
	}
	for _, v := range j.Get("elements").Arr() {
		el := Element{
			Selector:    v.Get("selector").Str(),
			Type:        v.Get("type").Str(),
			Text:        v.Get("text").Str(),
			Label:       v.Get("label").Str(),
			Placeholder: v.Get("placeholder").Str(),
			Name:        v.Get("name").Str(),
			ID:          v.Get("id").Str(),
			Value:       v.Get("value").Str(),
		}
		for _, o := range v.Get("options").Arr() {
			el.Options = append(el.Options, o.Str())
		}
		if el.Selector == "" {
			continue
		}
		m.Elements = append(m.Elements, el)
	}
	for _, v := range j.Get("navigation").Arr() {
		m.Navigation = append(m.Navigation, NavItem{
			Selector: v.Get("selector").Str(),
			Text:     v.Get("text").Str(),
			Href:     v.Get("href").Str(),
		})
	}
	return m
}

// Settle waits until interactive elements are rendered or timeout passes.
// It returns early on a closed page or a cancelled context.
func Settle(ctx context.Context, page driver.Page, timeout time.Duration) error {
	wait, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		data, err := page.EvalJSON(wait, interactiveCountJS)
		if err != nil && driver.IsClosed(err) {
			return err
		}
		if err == nil && gson.NewFrom(string(data)).Int() > 0 {
			return nil
		}
		select {
		case <-wait.Done():
			if page.Closed() {
				return driver.ErrPageClosed
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
